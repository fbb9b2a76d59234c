package treesitter

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseTreeReturnsOwnedClone(t *testing.T) {
	t.Parallel()

	p := NewParser()
	t.Cleanup(func() { _ = p.Close() })

	src := []byte("package main\n\nfunc main() {}\n")
	tree, err := p.ParseTree(context.Background(), "main.go", src)
	require.NoError(t, err)
	require.NotNil(t, tree.RootNode())
	tree.Close()

	// A second parse of identical content is served from the tree cache
	// and is again caller-owned.
	tree2, err := p.ParseTree(context.Background(), "main.go", src)
	require.NoError(t, err)
	require.NotNil(t, tree2.RootNode())
	tree2.Close()
}

func TestParseTreeUnsupportedFile(t *testing.T) {
	t.Parallel()

	p := NewParser()
	t.Cleanup(func() { _ = p.Close() })

	_, err := p.ParseTree(context.Background(), "README.md", []byte("# hi\n"))
	require.Error(t, err)
}

func TestParserConcurrentUse(t *testing.T) {
	t.Parallel()

	p := NewParserWithConfig(ParserConfig{PoolSize: 2})
	t.Cleanup(func() { _ = p.Close() })

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			src := []byte("def f():\n    pass\n")
			tree, err := p.ParseTree(context.Background(), "f.py", src)
			if err == nil {
				tree.Close()
			}
		}(i)
	}
	wg.Wait()
}

func TestParserCloseRejectsAcquire(t *testing.T) {
	t.Parallel()

	p := NewParser()
	require.NoError(t, p.Close())

	_, err := p.ParseTree(context.Background(), "main.go", []byte("package main\n"))
	require.ErrorIs(t, err, ErrParserClosed)
}

func TestSupportedLanguages(t *testing.T) {
	t.Parallel()

	p := NewParser()
	t.Cleanup(func() { _ = p.Close() })

	langs := p.Languages()
	require.Contains(t, langs, "go")
	require.Contains(t, langs, "python")
	require.True(t, p.SupportsLanguage("go"))
	require.False(t, p.SupportsLanguage("cobol"))
}
