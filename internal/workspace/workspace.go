// Package workspace resolves file names against the project tree: path
// canonicalization, nearest-filename correction, and file text access with
// in-memory overrides for unsaved editor buffers.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	edlib "github.com/hbollon/go-edlib"
)

// Workspace indexes one project root.
type Workspace struct {
	root         string
	excludeGlobs []string

	mu        sync.RWMutex
	files     []string          // relative slash paths, sorted
	overrides map[string]string // cpath -> unsaved buffer content
}

// New creates a workspace over root. Exclude globs use doublestar syntax
// against root-relative slash paths.
func New(root string, excludeGlobs []string) *Workspace {
	return &Workspace{
		root:         root,
		excludeGlobs: excludeGlobs,
		overrides:    make(map[string]string),
	}
}

// Root returns the workspace root directory.
func (w *Workspace) Root() string { return w.root }

// Canonicalize turns a file name into an absolute cleaned slash path.
// Relative names resolve against the workspace root.
func (w *Workspace) Canonicalize(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("empty file name")
	}
	if !filepath.IsAbs(name) && w.root != "" {
		name = filepath.Join(w.root, name)
	}
	abs, err := filepath.Abs(name)
	if err != nil {
		return "", fmt.Errorf("canonicalize %q: %w", name, err)
	}
	return filepath.ToSlash(filepath.Clean(abs)), nil
}

// SetOverride registers unsaved buffer content for a canonical path.
func (w *Workspace) SetOverride(cpath, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.overrides[cpath] = content
}

// ClearOverride removes an unsaved buffer.
func (w *Workspace) ClearOverride(cpath string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.overrides, cpath)
}

// ReadText returns file text for a canonical path, preferring in-memory
// overrides over disk.
func (w *Workspace) ReadText(_ context.Context, cpath string) (string, error) {
	w.mu.RLock()
	if content, ok := w.overrides[cpath]; ok {
		w.mu.RUnlock()
		return content, nil
	}
	w.mu.RUnlock()

	data, err := os.ReadFile(filepath.FromSlash(cpath))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", cpath, err)
	}
	return string(data), nil
}

// Refresh rescans the workspace tree and rebuilds the nearest-name index.
func (w *Workspace) Refresh(ctx context.Context) error {
	if w.root == "" {
		return nil
	}
	files := make([]string, 0, 256)
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx != nil && ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if shouldSkipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if matchesAnyGlob(rel, w.excludeGlobs) {
			return nil
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	w.mu.Lock()
	w.files = files
	w.mu.Unlock()
	return nil
}

// Files returns the indexed root-relative paths.
func (w *Workspace) Files() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return append([]string(nil), w.files...)
}

// Nearest suggests up to k indexed file names closest to name. A name
// that resolves exactly (by suffix match on the relative path) is returned
// alone; otherwise candidates are ranked by edit distance on base names.
func (w *Workspace) Nearest(_ context.Context, name string, k int) []string {
	if k <= 0 {
		return nil
	}
	w.mu.RLock()
	files := w.files
	w.mu.RUnlock()
	if len(files) == 0 {
		return nil
	}

	name = filepath.ToSlash(strings.TrimSpace(name))
	for _, f := range files {
		if f == name || strings.HasSuffix(f, "/"+name) {
			return []string{f}
		}
	}

	base := filepath.Base(name)
	bases := make([]string, len(files))
	for i, f := range files {
		bases[i] = filepath.Base(f)
	}
	matches, err := edlib.FuzzySearchSet(base, bases, k, edlib.Levenshtein)
	if err != nil {
		return nil
	}

	out := make([]string, 0, k)
	seen := make(map[string]struct{}, k)
	for _, m := range matches {
		if m == "" {
			continue
		}
		for _, f := range files {
			if filepath.Base(f) != m {
				continue
			}
			if _, ok := seen[f]; ok {
				continue
			}
			seen[f] = struct{}{}
			out = append(out, f)
			break
		}
		if len(out) == k {
			break
		}
	}
	return out
}

func shouldSkipDir(name string) bool {
	switch name {
	case ".git", ".hg", ".svn", "node_modules", "target", "dist", "__pycache__", ".venv", "venv":
		return true
	}
	return false
}

// matchesAnyGlob reports whether path matches any doublestar pattern.
// Malformed patterns are silently skipped.
func matchesAnyGlob(path string, patterns []string) bool {
	for _, p := range patterns {
		if matched, err := doublestar.Match(p, path); err == nil && matched {
			return true
		}
	}
	return false
}
