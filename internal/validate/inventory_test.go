package validate

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestBuildInventoryClassification(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"src/lib.rs":             "",
		"src/auth_test.rs":       "",
		"tests/integration.rs":   "",
		"tests/fixtures/data.rs": "",
		"README.md":              "",
		"target/out.rs":          "",
	})
	inv, err := BuildInventory(root)
	if err != nil {
		t.Fatalf("BuildInventory() error = %v", err)
	}

	got := map[string]FileKind{}
	for _, f := range inv {
		got[f.RelPath] = f.Kind
	}
	want := map[string]FileKind{
		"src/lib.rs":             KindSrc,
		"src/auth_test.rs":       KindTest,
		"tests/integration.rs":   KindTest,
		"tests/fixtures/data.rs": KindFixture,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("inventory = %v, want %v", got, want)
	}
}

func TestBuildInventoryDeterministic(t *testing.T) {
	root := writeFiles(t, map[string]string{
		"b.rs": "", "a.rs": "", "c/d.rs": "",
	})
	first, err := BuildInventory(root)
	if err != nil {
		t.Fatal(err)
	}
	second, err := BuildInventory(root)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("two walks of an unchanged tree differ")
	}
	for i := 1; i < len(first); i++ {
		if first[i-1].RelPath >= first[i].RelPath {
			t.Errorf("inventory not sorted at %d: %s >= %s", i, first[i-1].RelPath, first[i].RelPath)
		}
	}
}

func TestMatchGlob(t *testing.T) {
	cases := []struct {
		pattern, path string
		want          bool
	}{
		{"**/infrastructure/**", "src/infrastructure/db.rs", true},
		{"**/infrastructure/**", "infrastructure/db.rs", true},
		{"**/infrastructure/**", "src/domain/db.rs", false},
		{"**/main.rs", "src/bin/main.rs", true},
		{"**/main.rs", "main.rs", true},
		{"**/main.rs", "src/main_loop.rs", false},
		{"src/*.rs", "src/lib.rs", true},
		{"src/*.rs", "src/sub/lib.rs", false},
	}
	for _, tc := range cases {
		if got := matchGlob(tc.pattern, tc.path); got != tc.want {
			t.Errorf("matchGlob(%q, %q) = %v, want %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
