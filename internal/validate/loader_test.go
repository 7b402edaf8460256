package validate

import (
	"io/fs"
	"testing"
	"testing/fstest"

	"codescope/internal/errs"
)

func TestLoadEmbeddedBundle(t *testing.T) {
	rs, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if rs.Len() == 0 {
		t.Fatal("no rules loaded")
	}

	rule, ok := rs.Get("CA009")
	if !ok {
		t.Fatal("CA009 missing from bundle")
	}
	if rule.Category != CategoryCleanArchitecture || rule.Matcher.Type != MatcherRegex {
		t.Errorf("CA009 = %+v", rule)
	}
	if rule.compiled == nil {
		t.Error("CA009 pattern not compiled")
	}

	// Templates are never part of the rule set.
	if _, ok := rs.Get("XXX000"); ok {
		t.Error("template rule leaked into the rule set")
	}
}

func bundleWith(t *testing.T, docs map[string]string) fs.FS {
	t.Helper()
	schema, err := fs.ReadFile(rulesFS, "rules/schema.json")
	if err != nil {
		t.Fatal(err)
	}
	m := fstest.MapFS{"rules/schema.json": &fstest.MapFile{Data: schema}}
	for name, doc := range docs {
		m["rules/"+name] = &fstest.MapFile{Data: []byte(doc)}
	}
	return m
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	bundle := bundleWith(t, map[string]string{
		"quality/a.yml": "id: QUAL002\ncategory: quality\nseverity: warning\nmatcher:\n  type: regex\n  pattern: 'x'\n",
		"quality/b.yml": "id: QUAL002\ncategory: quality\nseverity: warning\nmatcher:\n  type: regex\n  pattern: 'y'\n",
	})
	_, err := LoadFS(bundle, "rules")
	if !errs.IsKind(err, errs.KindInvalidArgument) {
		t.Fatalf("duplicate id err = %v, want invalid argument", err)
	}
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"unknown key":  "id: QUAL002\ncategory: quality\nseverity: warning\nbanana: true\nmatcher:\n  type: regex\n  pattern: 'x'\n",
		"bad id":       "id: NOPE\ncategory: quality\nseverity: warning\nmatcher:\n  type: regex\n  pattern: 'x'\n",
		"bad severity": "id: QUAL002\ncategory: quality\nseverity: fatal\nmatcher:\n  type: regex\n  pattern: 'x'\n",
		"no matcher":   "id: QUAL002\ncategory: quality\nseverity: warning\n",
	}
	for name, doc := range cases {
		bundle := bundleWith(t, map[string]string{"quality/bad.yml": doc})
		if _, err := LoadFS(bundle, "rules"); err == nil {
			t.Errorf("%s: bundle loaded, want rejection", name)
		}
	}
}

func TestLoadRejectsBadRegex(t *testing.T) {
	bundle := bundleWith(t, map[string]string{
		"quality/bad.yml": "id: QUAL002\ncategory: quality\nseverity: warning\nmatcher:\n  type: regex\n  pattern: '['\n",
	})
	if _, err := LoadFS(bundle, "rules"); err == nil {
		t.Fatal("uncompilable pattern accepted")
	}
}

func TestLoadExcludesTemplates(t *testing.T) {
	bundle := bundleWith(t, map[string]string{
		"templates/t.yml": "not even valid yaml: [",
		"quality/ok.yml":  "id: QUAL002\ncategory: quality\nseverity: warning\nmatcher:\n  type: regex\n  pattern: 'x'\n",
	})
	rs, err := LoadFS(bundle, "rules")
	if err != nil {
		t.Fatalf("LoadFS() error = %v", err)
	}
	if rs.Len() != 1 {
		t.Errorf("Len = %d, want 1", rs.Len())
	}
}
