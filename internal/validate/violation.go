// Package validate statically checks a codebase against a catalog of
// YAML-defined architecture and quality rules, emitting typed violations
// over a closed taxonomy.
package validate

import (
	"fmt"
	"sort"
)

// Severity grades a violation.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Category groups rules by concern.
type Category string

const (
	CategoryCleanArchitecture Category = "clean-architecture"
	CategoryQuality           Category = "quality"
	CategoryOrganization      Category = "organization"
	CategoryTesting           Category = "testing"
	CategoryDuplication       Category = "duplication"
	CategoryMetrics           Category = "metrics"
	CategoryDocumentation     Category = "documentation"
	CategoryMigration         Category = "migration"
	CategoryDI                Category = "di"
)

var validCategories = map[Category]bool{
	CategoryCleanArchitecture: true,
	CategoryQuality:           true,
	CategoryOrganization:      true,
	CategoryTesting:           true,
	CategoryDuplication:       true,
	CategoryMetrics:           true,
	CategoryDocumentation:     true,
	CategoryMigration:         true,
	CategoryDI:                true,
}

// Violation is one finding. The variant set is closed: every concrete type
// maps to a stable rule code, and aggregators only ever see this interface.
type Violation interface {
	ID() string
	Category() Category
	Severity() Severity
	File() string
	Line() int
	Suggestion() string
	Display() string
}

// base carries the fields shared by every variant.
type base struct {
	code       string
	category   Category
	severity   Severity
	file       string
	line       int
	suggestion string
}

func (b base) ID() string         { return b.code }
func (b base) Category() Category { return b.category }
func (b base) Severity() Severity { return b.severity }
func (b base) File() string       { return b.file }
func (b base) Line() int          { return b.line }
func (b base) Suggestion() string { return b.suggestion }

// InfrastructureImportsApplication flags an infrastructure file importing
// from the application layer (CA009).
type InfrastructureImportsApplication struct {
	base
	ImportPath string
}

func (v InfrastructureImportsApplication) Display() string {
	return fmt.Sprintf("[%s] %s:%d infrastructure imports application (%s)",
		v.code, v.file, v.line, v.ImportPath)
}

// LayerImport flags any other forbidden cross-layer import (CA001..CA017
// except CA009, which has its own variant).
type LayerImport struct {
	base
	ImportPath string
	FromLayer  string
	ToLayer    string
}

func (v LayerImport) Display() string {
	return fmt.Sprintf("[%s] %s:%d %s layer imports %s (%s)",
		v.code, v.file, v.line, v.FromLayer, v.ToLayer, v.ImportPath)
}

// MagicNumber flags a bare numeric literal in logic code (QUAL001).
type MagicNumber struct {
	base
	Value   string
	Context string
}

func (v MagicNumber) Display() string {
	return fmt.Sprintf("[%s] %s:%d magic number %s in %q", v.code, v.file, v.line, v.Value, v.Context)
}

// ForbiddenCall flags a call that must not appear outside sanctioned
// contexts, such as .unwrap() outside tests (QUAL007).
type ForbiddenCall struct {
	base
	Call string
}

func (v ForbiddenCall) Display() string {
	return fmt.Sprintf("[%s] %s:%d forbidden call %s", v.code, v.file, v.line, v.Call)
}

// PatternMatch is the generic lexical finding for regex rules without a more
// specific variant (QUAL, ORG codes).
type PatternMatch struct {
	base
	Matched string
}

func (v PatternMatch) Display() string {
	return fmt.Sprintf("[%s] %s:%d matched %q", v.code, v.file, v.line, v.Matched)
}

// FileTooLong flags a file exceeding the configured line budget (ORG002).
type FileTooLong struct {
	base
	Lines int
	Max   int
}

func (v FileTooLong) Display() string {
	return fmt.Sprintf("[%s] %s has %d lines (max %d)", v.code, v.file, v.Lines, v.Max)
}

// MisplacedFile flags a file outside its expected directory (ORG015).
type MisplacedFile struct {
	base
	Expected string
}

func (v MisplacedFile) Display() string {
	return fmt.Sprintf("[%s] %s does not match expected location %s", v.code, v.file, v.Expected)
}

// MissingTests flags a source file without a sibling test (TEST001).
type MissingTests struct {
	base
}

func (v MissingTests) Display() string {
	return fmt.Sprintf("[%s] %s has no test coverage", v.code, v.file)
}

// DuplicateBlock flags near-identical code blocks across files (DUP001).
type DuplicateBlock struct {
	base
	OtherFile string
	OtherLine int
}

func (v DuplicateBlock) Display() string {
	return fmt.Sprintf("[%s] %s:%d duplicates %s:%d", v.code, v.file, v.line, v.OtherFile, v.OtherLine)
}

// SortViolations orders findings by (rule id, file, line) so repeated scans
// of the same inventory are bit-identical.
func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].ID() != vs[j].ID() {
			return vs[i].ID() < vs[j].ID()
		}
		if vs[i].File() != vs[j].File() {
			return vs[i].File() < vs[j].File()
		}
		return vs[i].Line() < vs[j].Line()
	})
}
