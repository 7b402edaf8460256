package validate

import (
	"context"
	"strings"
	"testing"
)

func loadRules(t *testing.T) *RuleSet {
	t.Helper()
	rs, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	return rs
}

// ruleSubset narrows the embedded bundle to the given ids.
func ruleSubset(t *testing.T, ids ...string) *RuleSet {
	t.Helper()
	full := loadRules(t)
	sub := &RuleSet{byID: make(map[string]*Rule)}
	for _, id := range ids {
		rule, ok := full.Get(id)
		if !ok {
			t.Fatalf("rule %s not in bundle", id)
		}
		sub.rules = append(sub.rules, rule)
	}
	for i := range sub.rules {
		sub.byID[sub.rules[i].ID] = &sub.rules[i]
	}
	return sub
}

func scanTree(t *testing.T, rs *RuleSet, files map[string]string) []Violation {
	t.Helper()
	root := writeFiles(t, files)
	inv, err := BuildInventory(root)
	if err != nil {
		t.Fatal(err)
	}
	vs, err := NewScanner(rs).Scan(context.Background(), inv)
	if err != nil {
		t.Fatal(err)
	}
	return vs
}

func byID(vs []Violation, id string) []Violation {
	var out []Violation
	for _, v := range vs {
		if v.ID() == id {
			out = append(out, v)
		}
	}
	return out
}

const infraFixture = `use crate::domain::User;
// use crate::application::Commented;
use crate::application::UserService;
pub struct Repo;
#[cfg(test)]
mod tests {
    use crate::application::TestHelper;
}
`

func TestScanCA009Fixture(t *testing.T) {
	vs := scanTree(t, loadRules(t), map[string]string{
		"src/infrastructure/repo.rs": infraFixture,
	})

	ca := byID(vs, "CA009")
	if len(ca) != 1 {
		t.Fatalf("CA009 violations = %d, want exactly 1: %v", len(ca), ca)
	}
	v, ok := ca[0].(InfrastructureImportsApplication)
	if !ok {
		t.Fatalf("violation type = %T, want InfrastructureImportsApplication", ca[0])
	}
	if v.Line() != 3 {
		t.Errorf("line = %d, want 3", v.Line())
	}
	if v.ImportPath != "UserService" {
		t.Errorf("import path = %q, want UserService", v.ImportPath)
	}
	if v.File() != "src/infrastructure/repo.rs" {
		t.Errorf("file = %q", v.File())
	}
	if v.Severity() != SeverityError {
		t.Errorf("severity = %s, want error", v.Severity())
	}
}

func TestScanPathExceptionSuppressesFile(t *testing.T) {
	vs := scanTree(t, ruleSubset(t, "CA009"), map[string]string{
		"src/infrastructure/generated/dto.rs": "use crate::application::Dto;\n",
	})
	if len(vs) != 0 {
		t.Errorf("generated file should be excepted, got %v", vs)
	}
}

func TestScanLayerImportVariant(t *testing.T) {
	vs := scanTree(t, ruleSubset(t, "CA001"), map[string]string{
		"src/domain/user.rs": "use crate::infrastructure::Postgres;\n#[cfg(test)]\nmod tests {}\n",
	})
	if len(vs) != 1 {
		t.Fatalf("violations = %v, want 1", vs)
	}
	v, ok := vs[0].(LayerImport)
	if !ok {
		t.Fatalf("type = %T, want LayerImport", vs[0])
	}
	if v.FromLayer != "domain" || v.ToLayer != "infrastructure" {
		t.Errorf("layers = %s -> %s", v.FromLayer, v.ToLayer)
	}
}

func TestScanMagicNumberSkipsAndExceptions(t *testing.T) {
	src := strings.Join([]string{
		"const MAX_SIZE: usize = 4096;", // constants skipped
		"// threshold is 9999",          // comments skipped
		"fn f(x: usize) -> bool {",
		"    let base = 1000;", // excepted round base
		"    x > 4096",         // flagged
		"}",
	}, "\n") + "\n"

	vs := scanTree(t, ruleSubset(t, "QUAL001"), map[string]string{"src/f.rs": src})
	if len(vs) != 1 {
		t.Fatalf("violations = %v, want 1", vs)
	}
	v := vs[0].(MagicNumber)
	if v.Line() != 5 || v.Value != "4096" {
		t.Errorf("got %s at line %d, want 4096 at 5", v.Value, v.Line())
	}
}

func TestScanUnwrapOutsideTests(t *testing.T) {
	src := strings.Join([]string{
		"fn main() {",
		"    let v = maybe().unwrap();", // flagged, line 2
		"    // SAFETY: maybe() is seeded above",
		"    let w = maybe().unwrap();", // annotated
		"}",
		"#[cfg(test)]",
		"mod tests {",
		"    fn t() { let x = f().unwrap(); }", // test module
		"}",
	}, "\n") + "\n"

	vs := scanTree(t, ruleSubset(t, "QUAL007"), map[string]string{"src/app.rs": src})
	if len(vs) != 1 {
		t.Fatalf("violations = %v, want 1", vs)
	}
	v := vs[0].(ForbiddenCall)
	if v.Line() != 2 || v.Call != ".unwrap()" {
		t.Errorf("got %s at line %d, want .unwrap() at 2", v.Call, v.Line())
	}
}

func TestScanTestBlockOpensOnAttributeLine(t *testing.T) {
	src := strings.Join([]string{
		"#[cfg(test)] mod tests {", // module opens on the attribute line
		"    fn t() {",
		"        let n = 4096;",
		"    }",
		"    fn seed() -> usize { let s = 8192; s }", // still in the module
		"}",
		"fn prod(x: usize) -> bool {",
		"    x > 2048", // flagged, line 8
		"}",
	}, "\n") + "\n"

	vs := scanTree(t, ruleSubset(t, "QUAL001"), map[string]string{"src/f.rs": src})
	if len(vs) != 1 {
		t.Fatalf("violations = %v, want 1", vs)
	}
	v := vs[0].(MagicNumber)
	if v.Line() != 8 || v.Value != "2048" {
		t.Errorf("got %s at line %d, want 2048 at 8", v.Value, v.Line())
	}
}

func TestScanStructuralChecks(t *testing.T) {
	long := strings.Repeat("fn x() {}\n", 501)
	vs := scanTree(t, ruleSubset(t, "ORG002", "ORG015"), map[string]string{
		"src/big.rs":      long + "#[cfg(test)] mod tests {}\n",
		"src/roundtrip_it.rs": "fn probe() {}\n",
		"tests/ok_it.rs":  "fn probe() {}\n",
	})

	if n := len(byID(vs, "ORG002")); n != 1 {
		t.Errorf("ORG002 count = %d, want 1", n)
	}
	misplaced := byID(vs, "ORG015")
	if len(misplaced) != 1 || misplaced[0].File() != "src/roundtrip_it.rs" {
		t.Errorf("ORG015 = %v, want only src/roundtrip_it.rs", misplaced)
	}
}

func TestScanDuplicateBlocks(t *testing.T) {
	block := strings.Join([]string{
		"fn shared() {",
		"    let a = 1;",
		"    let b = 2;",
		"    let c = 3;",
		"    let d = 4;",
		"    let e = 5;",
		"    let f = 6;",
		"    a + b + c + d + e + f;",
		"}",
	}, "\n")
	vs := scanTree(t, ruleSubset(t, "DUP001"), map[string]string{
		"src/one.rs": block + "\n",
		"src/two.rs": block + "\n",
	})
	dups := byID(vs, "DUP001")
	if len(dups) != 1 {
		t.Fatalf("DUP001 = %v, want 1", dups)
	}
	v := dups[0].(DuplicateBlock)
	if v.OtherFile != "src/one.rs" || v.File() != "src/two.rs" {
		t.Errorf("duplicate attribution = %s duplicates %s", v.File(), v.OtherFile)
	}
}

func TestScanIsDeterministicAndOrdered(t *testing.T) {
	files := map[string]string{
		"src/infrastructure/a.rs": "use crate::application::A;\nuse crate::application::B;\n",
		"src/infrastructure/b.rs": "use crate::application::C;\n",
		"src/domain/c.rs":         "use crate::infrastructure::D;\n",
	}
	rs := ruleSubset(t, "CA001", "CA009")

	first := scanTree(t, rs, files)
	second := scanTree(t, rs, files)
	if len(first) != len(second) {
		t.Fatalf("runs differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Display() != second[i].Display() {
			t.Errorf("finding %d differs between runs", i)
		}
	}

	for i := 1; i < len(first); i++ {
		a, b := first[i-1], first[i]
		if a.ID() > b.ID() ||
			(a.ID() == b.ID() && a.File() > b.File()) ||
			(a.ID() == b.ID() && a.File() == b.File() && a.Line() > b.Line()) {
			t.Errorf("ordering broken at %d: %s before %s", i, a.Display(), b.Display())
		}
	}
}

func TestFixturesAreNeverScanned(t *testing.T) {
	vs := scanTree(t, loadRules(t), map[string]string{
		"tests/fixtures/infrastructure/bad.rs": "use crate::application::X;\n",
	})
	if len(vs) != 0 {
		t.Errorf("fixture produced violations: %v", vs)
	}
}
