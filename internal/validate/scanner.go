package validate

import (
	"context"
	"log/slog"
	"os"
	"path"
	"strings"

	"codescope/internal/common"
)

// Scanner runs a rule set over a file inventory. Scans are pure: two runs on
// identical inventories produce identical violation sequences.
type Scanner struct {
	rules *RuleSet
	log   *slog.Logger
}

// NewScanner creates a scanner over the loaded rule set.
func NewScanner(rules *RuleSet) *Scanner {
	return &Scanner{rules: rules, log: common.Component("validate")}
}

// scanContext caches file contents for the duration of one scan.
type scanContext struct {
	files   []SourceFile
	content map[string][]byte // keyed by RelPath
}

func (sc *scanContext) load(f SourceFile) ([]byte, error) {
	if src, ok := sc.content[f.RelPath]; ok {
		return src, nil
	}
	src, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return nil, err
	}
	sc.content[f.RelPath] = src
	return src, nil
}

// Scan applies every rule to every eligible file and returns the findings in
// (rule id, file, line) order.
func (s *Scanner) Scan(ctx context.Context, files []SourceFile) ([]Violation, error) {
	sc := &scanContext{files: files, content: make(map[string][]byte)}
	var all []Violation

	for _, rule := range s.rules.Rules() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if rule.Matcher.Type == MatcherStructural && rule.Matcher.Check == checkDuplicateBlocks {
			vs, err := s.scanDuplicates(rule, sc)
			if err != nil {
				return nil, err
			}
			all = append(all, vs...)
			continue
		}
		for _, f := range files {
			if !s.eligible(rule, f) {
				continue
			}
			src, err := sc.load(f)
			if err != nil {
				s.log.Warn("read failed, file skipped", "file", f.RelPath, "error", err)
				continue
			}
			var vs []Violation
			switch rule.Matcher.Type {
			case MatcherRegex:
				vs = s.scanRegex(rule, f, src)
			case MatcherAST:
				vs = s.scanAST(rule, f, src)
			case MatcherStructural:
				vs = s.scanStructural(rule, f, src, sc)
			}
			all = append(all, vs...)
		}
	}

	SortViolations(all)
	return all, nil
}

// ScanFile runs the rule set against a single file.
func (s *Scanner) ScanFile(ctx context.Context, file SourceFile) ([]Violation, error) {
	return s.Scan(ctx, []SourceFile{file})
}

// eligible applies file kind, scope glob, and path-only exceptions.
func (s *Scanner) eligible(rule Rule, f SourceFile) bool {
	switch f.Kind {
	case KindFixture:
		return false
	case KindTest:
		if !rule.TestFiles {
			return false
		}
	}
	if rule.Matcher.Scope != "" && !matchGlob(rule.Matcher.Scope, f.RelPath) {
		return false
	}
	for _, ex := range rule.Exceptions {
		// An exception with only a path glob excludes the whole file; one
		// with a name regex is applied per match instead.
		if ex.NameRegex == "" && ex.PathGlob != "" && matchGlob(ex.PathGlob, f.RelPath) {
			return false
		}
	}
	return true
}

// excepted reports whether a concrete match is suppressed by an exception.
func excepted(rule Rule, relPath, matched string) bool {
	for i, ex := range rule.Exceptions {
		if ex.NameRegex == "" {
			continue
		}
		if ex.PathGlob != "" && !matchGlob(ex.PathGlob, relPath) {
			continue
		}
		if rule.nameMatchers[i] != nil && rule.nameMatchers[i].MatchString(matched) {
			return true
		}
	}
	return false
}

// scanRegex matches the rule's pattern line by line, honoring the rule's
// skip sets.
func (s *Scanner) scanRegex(rule Rule, f SourceFile, src []byte) []Violation {
	skip := make(map[SkipSet]bool, len(rule.Matcher.Skip))
	for _, sk := range rule.Matcher.Skip {
		skip[sk] = true
	}

	var out []Violation
	var st lineState
	for i, line := range strings.Split(string(src), "\n") {
		skipped := st.update(line)
		if skipped.skipFor(skip) {
			continue
		}
		m := rule.compiled.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		matched := m[0]
		if len(m) > 1 && m[1] != "" {
			matched = m[1]
		}
		if excepted(rule, f.RelPath, matched) {
			continue
		}
		out = append(out, s.lexicalViolation(rule, f, i+1, matched, strings.TrimSpace(line)))
	}
	return out
}

// lineClass is the set of skip classes a line belongs to.
type lineClass struct {
	comment   bool
	attribute bool
	testBlock bool
	constant  bool
}

func (c lineClass) skipFor(skip map[SkipSet]bool) bool {
	return (c.comment && skip[SkipComments]) ||
		(c.attribute && skip[SkipAttributes]) ||
		(c.testBlock && skip[SkipTestBlocks]) ||
		(c.constant && skip[SkipConstants])
}

// lineState tracks multi-line constructs: block comments and #[cfg(test)]
// blocks (skipped until their braces balance).
type lineState struct {
	inBlockComment bool
	testPending    bool // saw #[cfg(test)], waiting for the opening brace
	testDepth      int
}

func (st *lineState) update(line string) lineClass {
	trimmed := strings.TrimSpace(line)
	var c lineClass

	if st.inBlockComment {
		c.comment = true
		if strings.Contains(trimmed, "*/") {
			st.inBlockComment = false
		}
		return c
	}

	if st.testPending || st.testDepth > 0 {
		c.testBlock = true
		opens := strings.Count(line, "{")
		closes := strings.Count(line, "}")
		if st.testPending && opens > 0 {
			st.testPending = false
		}
		st.testDepth += opens - closes
		if st.testDepth <= 0 && !st.testPending {
			st.testDepth = 0
		}
		return c
	}

	switch {
	case strings.HasPrefix(trimmed, "//"):
		c.comment = true
	case strings.HasPrefix(trimmed, "/*"):
		c.comment = true
		if !strings.Contains(trimmed[2:], "*/") {
			st.inBlockComment = true
		}
	case strings.HasPrefix(trimmed, "#["):
		c.attribute = true
		if strings.Contains(trimmed, "cfg(test)") {
			// The block may open on the attribute line itself, as in
			// "#[cfg(test)] mod tests {"; count its braces here so the
			// skip region closes on the matching brace.
			opens := strings.Count(line, "{")
			closes := strings.Count(line, "}")
			if opens > 0 {
				st.testDepth = max(opens-closes, 0)
			} else {
				st.testPending = true
			}
		}
	case strings.HasPrefix(trimmed, "const ") || strings.HasPrefix(trimmed, "static ") ||
		strings.HasPrefix(trimmed, "pub const ") || strings.HasPrefix(trimmed, "pub static "):
		c.constant = true
	}
	return c
}

// lexicalViolation builds the variant for a regex finding.
func (s *Scanner) lexicalViolation(rule Rule, f SourceFile, line int, matched, context string) Violation {
	b := base{
		code:       rule.ID,
		category:   rule.Category,
		severity:   rule.Severity,
		file:       f.RelPath,
		line:       line,
		suggestion: rule.Suggestion,
	}
	switch {
	case rule.ID == "CA009":
		return InfrastructureImportsApplication{base: b, ImportPath: matched}
	case strings.HasPrefix(rule.ID, "CA"):
		return LayerImport{
			base:       b,
			ImportPath: matched,
			FromLayer:  layerFromScope(rule.Matcher.Scope),
			ToLayer:    layerFromPattern(rule.Matcher.Pattern),
		}
	case rule.ID == "QUAL001":
		return MagicNumber{base: b, Value: matched, Context: context}
	default:
		return PatternMatch{base: b, Matched: matched}
	}
}

// layerFromScope pulls the layer name out of a scope glob such as
// "**/domain/**".
func layerFromScope(scope string) string {
	for _, seg := range strings.Split(scope, "/") {
		if seg != "" && seg != "**" && !strings.ContainsAny(seg, "*?.") {
			return seg
		}
	}
	return ""
}

// layerFromPattern pulls the target layer from a crate-import pattern.
func layerFromPattern(pattern string) string {
	const marker = "crate::"
	i := strings.Index(pattern, marker)
	if i < 0 {
		return ""
	}
	rest := pattern[i+len(marker):]
	if j := strings.Index(rest, "::"); j > 0 {
		return rest[:j]
	}
	return ""
}

// baseName returns the file's base name, used as the match subject for
// structural exceptions.
func baseName(relPath string) string {
	return path.Base(relPath)
}
