package validate

import (
	"fmt"
	"regexp"

	"codescope/internal/errs"
)

// MatcherKind selects how a rule inspects files.
type MatcherKind string

const (
	MatcherRegex      MatcherKind = "regex"
	MatcherAST        MatcherKind = "ast"
	MatcherStructural MatcherKind = "structural"
)

// SkipSet names a class of lines the regex matcher ignores.
type SkipSet string

const (
	SkipComments   SkipSet = "comments"
	SkipAttributes SkipSet = "attributes"
	SkipTestBlocks SkipSet = "test-blocks"
	SkipConstants  SkipSet = "constants"
)

var validSkips = map[SkipSet]bool{
	SkipComments:   true,
	SkipAttributes: true,
	SkipTestBlocks: true,
	SkipConstants:  true,
}

// Matcher is the rule's inspection strategy, decoded from YAML.
type Matcher struct {
	Type MatcherKind `yaml:"type"`

	// Regex matcher.
	Pattern string    `yaml:"pattern,omitempty"`
	Scope   string    `yaml:"scope,omitempty"` // path glob the rule applies to
	Skip    []SkipSet `yaml:"skip,omitempty"`

	// AST matcher.
	Kind       string            `yaml:"kind,omitempty"` // e.g. "method-call"
	Predicates map[string]string `yaml:"predicates,omitempty"`

	// Structural matcher.
	Check  string         `yaml:"check,omitempty"` // e.g. "max-file-lines"
	Params map[string]any `yaml:"params,omitempty"`
}

// Exception suppresses a rule for matching files or names.
type Exception struct {
	PathGlob  string `yaml:"path_glob,omitempty"`
	NameRegex string `yaml:"name_regex,omitempty"`
	Rationale string `yaml:"rationale"`
}

// Rule is one validation rule, loaded from an embedded YAML document.
type Rule struct {
	ID          string      `yaml:"id"`
	Category    Category    `yaml:"category"`
	Severity    Severity    `yaml:"severity"`
	Description string      `yaml:"description,omitempty"`
	Matcher     Matcher     `yaml:"matcher"`
	Suggestion  string      `yaml:"suggestion,omitempty"`
	Exceptions  []Exception `yaml:"exceptions,omitempty"`

	// TestFiles widens the rule to test files too; by default rules apply
	// to Src files only.
	TestFiles bool `yaml:"test_files,omitempty"`

	compiled     *regexp.Regexp
	nameMatchers []*regexp.Regexp
}

// compile validates cross-field constraints and precompiles regexes.
func (r *Rule) compile() error {
	if !validCategories[r.Category] {
		return errs.Invalid("category", fmt.Sprintf("rule %s: unknown category %q", r.ID, r.Category))
	}
	switch r.Severity {
	case SeverityInfo, SeverityWarning, SeverityError:
	default:
		return errs.Invalid("severity", fmt.Sprintf("rule %s: unknown severity %q", r.ID, r.Severity))
	}

	switch r.Matcher.Type {
	case MatcherRegex:
		if r.Matcher.Pattern == "" {
			return errs.Invalid("matcher.pattern", fmt.Sprintf("rule %s: regex matcher needs a pattern", r.ID))
		}
		re, err := regexp.Compile(r.Matcher.Pattern)
		if err != nil {
			return errs.Invalid("matcher.pattern", fmt.Sprintf("rule %s: %v", r.ID, err))
		}
		r.compiled = re
		for _, s := range r.Matcher.Skip {
			if !validSkips[s] {
				return errs.Invalid("matcher.skip", fmt.Sprintf("rule %s: unknown skip set %q", r.ID, s))
			}
		}
	case MatcherAST:
		if r.Matcher.Kind == "" {
			return errs.Invalid("matcher.kind", fmt.Sprintf("rule %s: ast matcher needs a kind", r.ID))
		}
	case MatcherStructural:
		if r.Matcher.Check == "" {
			return errs.Invalid("matcher.check", fmt.Sprintf("rule %s: structural matcher needs a check", r.ID))
		}
	default:
		return errs.Invalid("matcher.type", fmt.Sprintf("rule %s: unknown matcher type %q", r.ID, r.Matcher.Type))
	}

	r.nameMatchers = make([]*regexp.Regexp, len(r.Exceptions))
	for i, ex := range r.Exceptions {
		if ex.PathGlob == "" && ex.NameRegex == "" {
			return errs.Invalid("exceptions", fmt.Sprintf("rule %s: exception needs path_glob or name_regex", r.ID))
		}
		if ex.NameRegex != "" {
			re, err := regexp.Compile(ex.NameRegex)
			if err != nil {
				return errs.Invalid("exceptions.name_regex", fmt.Sprintf("rule %s: %v", r.ID, err))
			}
			r.nameMatchers[i] = re
		}
	}
	return nil
}

// RuleSet is the loaded, validated rule catalog.
type RuleSet struct {
	rules []Rule
	byID  map[string]*Rule
}

// Rules returns the rules in load order.
func (rs *RuleSet) Rules() []Rule { return rs.rules }

// Get returns a rule by id.
func (rs *RuleSet) Get(id string) (Rule, bool) {
	r, ok := rs.byID[id]
	if !ok {
		return Rule{}, false
	}
	return *r, true
}

// Len returns the number of loaded rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }
