package treesitter

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/singleflight"
)

// MarkupService produces FileMarkup for the context postprocessor,
// deduplicating concurrent requests for the same path and content.
type MarkupService struct {
	parser Parser
	flight singleflight.Group
}

// NewMarkupService creates a markup service over a parser.
func NewMarkupService(parser Parser) *MarkupService {
	return &MarkupService{parser: parser}
}

// FileMarkup parses content and extracts symbol markup. The error is
// non-nil for unsupported languages and parse failures; callers degrade
// to symbol-free handling.
func (s *MarkupService) FileMarkup(ctx context.Context, cpath string, content string) (*FileMarkup, error) {
	key := treeCacheKey(cpath, []byte(content))
	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.fileMarkup(ctx, cpath, content)
	})
	if err != nil {
		return nil, err
	}
	markup := v.(*FileMarkup)

	// Hand out a copy: concurrent duplicate callers share the flight
	// result, and the postprocessor sorts the symbol slice in place.
	out := *markup
	out.SymbolsSortedByPathLen = slices.Clone(markup.SymbolsSortedByPathLen)
	return &out, nil
}

func (s *MarkupService) fileMarkup(ctx context.Context, cpath string, content string) (*FileMarkup, error) {
	lang := MapPath(cpath)
	if lang == "" {
		return nil, fmt.Errorf("no grammar for %s", cpath)
	}

	raw := []byte(content)
	tree, err := s.parser.ParseTree(ctx, cpath, raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", cpath, err)
	}
	defer tree.Close()

	symbols := ExtractSymbols(cpath, lang, tree.RootNode(), raw)
	slices.SortStableFunc(symbols, func(a, b Symbol) int {
		return len(a.SymbolPath) - len(b.SymbolPath)
	})

	return &FileMarkup{
		Cpath:                  cpath,
		FileContent:            content,
		SymbolsSortedByPathLen: symbols,
	}, nil
}

// Close releases the underlying parser.
func (s *MarkupService) Close() error {
	return s.parser.Close()
}
