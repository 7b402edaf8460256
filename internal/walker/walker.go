// Package walker discovers candidate source files under a root directory.
package walker

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// FileInfo holds metadata about a discovered source file.
type FileInfo struct {
	Path    string // absolute
	RelPath string // slash-separated, relative to the walk root
	Size    int64
}

// Options controls a walk.
type Options struct {
	// AllowedExts filters files by extension (without dot). Empty means all.
	AllowedExts map[string]bool
	// ExcludePatterns are glob patterns matched against directory names and
	// slash-relative paths.
	ExcludePatterns []string
	// MaxFileSize skips larger files; zero means 1 MB.
	MaxFileSize int64
}

// defaultExcludes cover the directories no indexing run wants.
var defaultExcludes = []string{
	".git", ".svn", ".hg",
	"node_modules", "vendor", "target",
	"__pycache__", ".idea", ".vscode",
	"dist", "build",
}

// Walk traverses root and sends discovered files on the returned channel.
// Symlinks and empty files are skipped. The error channel carries at most
// one walk-level error and is closed when the walk finishes.
func Walk(root string, opts Options) (<-chan FileInfo, <-chan error) {
	files := make(chan FileInfo, 64)
	errs := make(chan error, 1)

	maxSize := opts.MaxFileSize
	if maxSize <= 0 {
		maxSize = 1 << 20
	}
	patterns := append([]string{}, defaultExcludes...)
	patterns = append(patterns, opts.ExcludePatterns...)

	go func() {
		defer close(files)
		defer close(errs)

		absRoot, err := filepath.Abs(root)
		if err != nil {
			errs <- err
			return
		}

		err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil // unreadable entries are skipped, walk continues
			}

			if d.IsDir() {
				if path == absRoot {
					return nil
				}
				rel, _ := filepath.Rel(absRoot, path)
				if matchesExclude(d.Name(), filepath.ToSlash(rel), patterns) {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				return nil
			}

			rel, _ := filepath.Rel(absRoot, path)
			relSlash := filepath.ToSlash(rel)
			if matchesExclude(d.Name(), relSlash, patterns) {
				return nil
			}

			if len(opts.AllowedExts) > 0 {
				ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
				if !opts.AllowedExts[ext] {
					return nil
				}
			}

			info, err := d.Info()
			if err != nil {
				return nil
			}
			if info.Size() > maxSize || info.Size() == 0 {
				return nil
			}

			files <- FileInfo{Path: path, RelPath: relSlash, Size: info.Size()}
			return nil
		})
		if err != nil {
			errs <- err
		}
	}()

	return files, errs
}

// matchesExclude checks a name and relative path against the patterns.
func matchesExclude(name, relPath string, patterns []string) bool {
	for _, p := range patterns {
		if name == p {
			return true
		}
		if strings.HasPrefix(relPath, p+"/") || relPath == p {
			return true
		}
		if matched, _ := filepath.Match(p, relPath); matched {
			return true
		}
		if matched, _ := filepath.Match(p, name); matched {
			return true
		}
	}
	return false
}
