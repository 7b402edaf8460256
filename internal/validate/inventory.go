package validate

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
)

// FileKind classifies an inventory entry.
type FileKind string

const (
	KindSrc     FileKind = "src"
	KindTest    FileKind = "test"
	KindFixture FileKind = "fixture"
)

// SourceFile is one entry in the file inventory.
type SourceFile struct {
	AbsPath string
	RelPath string // slash-separated, relative to the inventory root
	Kind    FileKind
}

// sourceExts are the extensions the scanner inspects.
var sourceExts = map[string]bool{
	".rs": true, ".go": true, ".py": true,
	".js": true, ".jsx": true, ".ts": true, ".tsx": true,
	".java": true, ".c": true, ".h": true, ".cpp": true, ".cs": true,
}

var skipDirs = map[string]bool{
	".git": true, "node_modules": true, "vendor": true,
	"target": true, "dist": true, "build": true, "__pycache__": true,
}

// BuildInventory walks root and returns a deterministic, path-sorted list of
// source files classified as Src, Test, or Fixture. Two walks of an
// unchanged tree produce identical inventories.
func BuildInventory(root string) ([]SourceFile, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	var files []SourceFile
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != absRoot && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !sourceExts[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		files = append(files, SourceFile{
			AbsPath: path,
			RelPath: relSlash,
			Kind:    classify(relSlash),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}

// classify buckets a file by its path. Fixture wins over Test so fixtures in
// test trees are not scanned as tests.
func classify(relPath string) FileKind {
	segments := strings.Split(relPath, "/")
	for _, seg := range segments[:len(segments)-1] {
		if seg == "fixtures" || seg == "testdata" {
			return KindFixture
		}
	}
	for _, seg := range segments[:len(segments)-1] {
		if seg == "tests" || seg == "test" {
			return KindTest
		}
	}
	name := segments[len(segments)-1]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if strings.HasSuffix(stem, "_test") || strings.HasSuffix(stem, "_it") ||
		strings.HasPrefix(name, "test_") {
		return KindTest
	}
	return KindSrc
}
