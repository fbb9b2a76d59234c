package docqueue

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeVectorizer struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeVectorizer) EnqueueFiles(_ context.Context, paths []string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, paths...)
	return nil
}

func writeOrigin(t *testing.T, root, name, url string, pages map[string]string) {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data := `{"url":"` + url + `","pages":{`
	first := true
	for k, v := range pages {
		if !first {
			data += ","
		}
		first = false
		data += `"` + k + `":"` + v + `"`
	}
	data += "}}"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "origin.json"), []byte(data), 0o644))
}

func TestEnqueueAllReadsOrigins(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeOrigin(t, root, "godocs", "https://go.dev/doc", map[string]string{
		"https://go.dev/doc/a": "/docs/a.md",
		"https://go.dev/doc/b": "/docs/b.md",
	})
	writeOrigin(t, root, "pydocs", "https://docs.python.org", map[string]string{
		"https://docs.python.org/x": "/docs/x.md",
	})

	vec := &fakeVectorizer{}
	s := NewService(root, vec)
	require.NoError(t, s.EnqueueAll(context.Background()))

	require.ElementsMatch(t, []string{"/docs/a.md", "/docs/b.md", "/docs/x.md"}, vec.paths)
	require.ElementsMatch(t, []string{"https://go.dev/doc", "https://docs.python.org"}, s.Sources())
}

func TestEnqueueAllDeduplicatesSources(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeOrigin(t, root, "godocs", "https://go.dev/doc", map[string]string{"p": "/docs/a.md"})

	s := NewService(root, &fakeVectorizer{})
	require.NoError(t, s.EnqueueAll(context.Background()))
	require.NoError(t, s.EnqueueAll(context.Background()))
	require.Len(t, s.Sources(), 1)
}

func TestEnqueueAllMissingRootIsNotFatal(t *testing.T) {
	t.Parallel()

	s := NewService(filepath.Join(t.TempDir(), "nope"), &fakeVectorizer{})
	require.NoError(t, s.EnqueueAll(context.Background()))
}

func TestEnqueueAllSkipsDirsWithoutOrigin(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty"), 0o755))

	vec := &fakeVectorizer{}
	s := NewService(root, vec)
	require.NoError(t, s.EnqueueAll(context.Background()))
	require.Empty(t, vec.paths)
}

func TestEnqueueAllBadManifestContinues(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "broken"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "broken", "origin.json"), []byte("{"), 0o644))
	writeOrigin(t, root, "good", "https://ok", map[string]string{"p": "/docs/ok.md"})

	vec := &fakeVectorizer{}
	s := NewService(root, vec)
	require.NoError(t, s.EnqueueAll(context.Background()))
	require.Equal(t, []string{"/docs/ok.md"}, vec.paths)
}
