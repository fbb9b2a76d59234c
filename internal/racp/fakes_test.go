package racp

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/stitchcode/stitch/internal/treesitter"
)

// fakeAst serves canned markup per canonical path.
type fakeAst struct {
	markup map[string]*treesitter.FileMarkup
}

func (f *fakeAst) FileMarkup(_ context.Context, cpath string, content string) (*treesitter.FileMarkup, error) {
	if f == nil || f.markup == nil {
		return nil, errors.New("no ast")
	}
	m, ok := f.markup[cpath]
	if !ok {
		return nil, fmt.Errorf("no markup for %s", cpath)
	}
	out := *m
	out.Cpath = cpath
	out.FileContent = content
	return &out, nil
}

// fakeReader serves file text from a map keyed by canonical path.
type fakeReader struct {
	texts map[string]string
}

func (f *fakeReader) ReadText(_ context.Context, cpath string) (string, error) {
	text, ok := f.texts[cpath]
	if !ok {
		return "", fmt.Errorf("no such file %s", cpath)
	}
	return text, nil
}

// fakePaths canonicalizes under a fixed root and suggests only what its
// nearest map holds (nothing when the map is nil).
type fakePaths struct {
	nearest map[string][]string
}

func (f *fakePaths) Canonicalize(name string) (string, error) {
	if name == "" {
		return "", errors.New("empty name")
	}
	if strings.HasPrefix(name, "/") {
		return path.Clean(name), nil
	}
	return path.Join("/ws", name), nil
}

func (f *fakePaths) Nearest(_ context.Context, name string, _ int) []string {
	if f.nearest == nil {
		return nil
	}
	return f.nearest[name]
}

// wordTokenizer charges one token per whitespace-separated word, making
// budget math easy to reason about in tests.
type wordTokenizer struct{}

func (wordTokenizer) Encode(_ context.Context, text string) ([]int, error) {
	words := strings.Fields(text)
	return make([]int, len(words)), nil
}

// lineTokenizer charges exactly one token for any non-empty text.
type lineTokenizer struct{}

func (lineTokenizer) Encode(_ context.Context, text string) ([]int, error) {
	if text == "" {
		return nil, nil
	}
	return []int{0}, nil
}

// failingTokenizer always errors; the pipeline must treat that as zero
// tokens.
type failingTokenizer struct{}

func (failingTokenizer) Encode(context.Context, string) ([]int, error) {
	return nil, errors.New("tokenizer down")
}

func numberedLines(n int) string {
	var b strings.Builder
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&b, "line%d\n", i)
	}
	return b.String()
}

func newTestPostprocessor(texts map[string]string, markup map[string]*treesitter.FileMarkup, tok Tokenizer) *Postprocessor {
	var ast AstService
	if markup != nil {
		ast = &fakeAst{markup: markup}
	}
	if tok == nil {
		tok = lineTokenizer{}
	}
	return New(ast, &fakeReader{texts: texts}, &fakePaths{}, tok, DefaultSettings())
}
