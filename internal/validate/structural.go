package validate

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
)

const (
	checkMaxFileLines    = "max-file-lines"
	checkFileLocation    = "file-location"
	checkHasTests        = "has-tests"
	checkDuplicateBlocks = "duplicate-blocks"
)

const (
	defaultMaxFileLines = 500
	defaultDupWindow    = 8
)

// scanStructural runs a whole-file check against one file.
func (s *Scanner) scanStructural(rule Rule, f SourceFile, src []byte, sc *scanContext) []Violation {
	b := base{
		code:       rule.ID,
		category:   rule.Category,
		severity:   rule.Severity,
		file:       f.RelPath,
		suggestion: rule.Suggestion,
	}
	switch rule.Matcher.Check {
	case checkMaxFileLines:
		max := paramInt(rule.Matcher.Params, "max", defaultMaxFileLines)
		lines := strings.Count(string(src), "\n") + 1
		if lines > max {
			return []Violation{FileTooLong{base: b, Lines: lines, Max: max}}
		}
	case checkFileLocation:
		nameGlob := paramString(rule.Matcher.Params, "name_glob")
		expected := paramString(rule.Matcher.Params, "expected_glob")
		if nameGlob == "" || expected == "" {
			return nil
		}
		if ok, _ := path.Match(nameGlob, baseName(f.RelPath)); !ok {
			return nil
		}
		if matchGlob(expected, f.RelPath) || excepted(rule, f.RelPath, baseName(f.RelPath)) {
			return nil
		}
		return []Violation{MisplacedFile{base: b, Expected: expected}}
	case checkHasTests:
		if !strings.HasSuffix(f.RelPath, ".rs") || f.Kind != KindSrc {
			return nil
		}
		if strings.Contains(string(src), "#[cfg(test)]") || hasSiblingTest(sc.files, f) {
			return nil
		}
		if excepted(rule, f.RelPath, baseName(f.RelPath)) {
			return nil
		}
		return []Violation{MissingTests{base: b}}
	default:
		s.log.Warn("unknown structural check", "rule", rule.ID, "check", rule.Matcher.Check)
	}
	return nil
}

// hasSiblingTest looks for a test file covering the source file's stem.
func hasSiblingTest(files []SourceFile, f SourceFile) bool {
	stem := strings.TrimSuffix(baseName(f.RelPath), path.Ext(f.RelPath))
	for _, other := range files {
		if other.Kind != KindTest {
			continue
		}
		otherStem := strings.TrimSuffix(baseName(other.RelPath), path.Ext(other.RelPath))
		if otherStem == stem || otherStem == stem+"_test" || otherStem == "test_"+stem {
			return true
		}
	}
	return false
}

// scanDuplicates hashes normalized line windows across all Src files and
// flags repeats. Files are visited in inventory order, so repeated scans
// emit identical findings.
func (s *Scanner) scanDuplicates(rule Rule, sc *scanContext) ([]Violation, error) {
	window := paramInt(rule.Matcher.Params, "window", defaultDupWindow)

	type site struct {
		file string
		line int
	}
	seen := make(map[string]site)
	var out []Violation

	for _, f := range sc.files {
		if f.Kind != KindSrc {
			continue
		}
		src, err := sc.load(f)
		if err != nil {
			s.log.Warn("read failed, file skipped", "file", f.RelPath, "error", err)
			continue
		}
		lines, lineNos := normalizedLines(string(src))
		for i := 0; i+window <= len(lines); i++ {
			sum := sha256.Sum256([]byte(strings.Join(lines[i:i+window], "\n")))
			key := hex.EncodeToString(sum[:])
			first, ok := seen[key]
			if !ok {
				seen[key] = site{file: f.RelPath, line: lineNos[i]}
				continue
			}
			if first.file == f.RelPath {
				continue
			}
			out = append(out, DuplicateBlock{
				base: base{
					code:       rule.ID,
					category:   rule.Category,
					severity:   rule.Severity,
					file:       f.RelPath,
					line:       lineNos[i],
					suggestion: rule.Suggestion,
				},
				OtherFile: first.file,
				OtherLine: first.line,
			})
			// One finding per file pair is enough.
			break
		}
	}
	return out, nil
}

// normalizedLines strips blanks and comments and trims whitespace, keeping
// the original line numbers.
func normalizedLines(src string) ([]string, []int) {
	var lines []string
	var nos []int
	for i, line := range strings.Split(src, "\n") {
		t := strings.TrimSpace(line)
		if t == "" || strings.HasPrefix(t, "//") || strings.HasPrefix(t, "#") {
			continue
		}
		lines = append(lines, t)
		nos = append(nos, i+1)
	}
	return lines, nos
}

func paramInt(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func paramString(params map[string]any, key string) string {
	if v, ok := params[key].(string); ok {
		return v
	}
	return ""
}
