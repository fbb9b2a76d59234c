// Package docqueue feeds downloaded documentation sets into the
// vectorizer. Each set lives in its own directory under the docs root
// with an origin.json manifest mapping page URLs to local files.
package docqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// DocOrigin is the origin.json manifest of one documentation set.
type DocOrigin struct {
	URL   string            `json:"url"`
	Pages map[string]string `json:"pages"` // page url -> local file path
}

// Vectorizer accepts files for embedding.
type Vectorizer interface {
	EnqueueFiles(ctx context.Context, paths []string, force bool) error
}

// Service scans the docs root and enqueues documentation pages.
type Service struct {
	root string
	vec  Vectorizer

	mu      sync.Mutex
	sources []string
}

// NewService creates a docqueue over root; vec may be nil when no
// vector database is configured.
func NewService(root string, vec Vectorizer) *Service {
	return &Service{root: root, vec: vec}
}

// Sources returns the documentation source URLs seen so far.
func (s *Service) Sources() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...)
}

// EnqueueAll scans every documentation set under the root and enqueues
// its pages. A missing root is not an error.
func (s *Service) EnqueueAll(ctx context.Context) error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		slog.Warn("No documentation directory", "root", s.root)
		return nil
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		originPath := filepath.Join(s.root, entry.Name(), "origin.json")
		if err := s.enqueueOrigin(ctx, originPath); err != nil {
			slog.Error("Unable to enqueue documentation set", "path", originPath, "err", err)
		}
	}
	return nil
}

func (s *Service) enqueueOrigin(ctx context.Context, originPath string) error {
	data, err := os.ReadFile(originPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var origin DocOrigin
	if err := json.Unmarshal(data, &origin); err != nil {
		return fmt.Errorf("parse %s: %w", originPath, err)
	}

	paths := make([]string, 0, len(origin.Pages))
	for _, p := range origin.Pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	if s.vec != nil && len(paths) > 0 {
		if err := s.vec.EnqueueFiles(ctx, paths, false); err != nil {
			return fmt.Errorf("enqueue %d pages: %w", len(paths), err)
		}
	}

	s.mu.Lock()
	if !contains(s.sources, origin.URL) {
		s.sources = append(s.sources, origin.URL)
	}
	s.mu.Unlock()
	return nil
}

// Watch re-scans the docs root whenever it changes, until the context is
// canceled.
func (s *Service) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.root); err != nil {
		return fmt.Errorf("watch %s: %w", s.root, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.EnqueueAll(ctx); err != nil {
				slog.Error("Documentation rescan failed", "err", err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("Documentation watcher error", "err", err)
		}
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
