package treesitter

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
)

// ErrParserClosed indicates parser acquisition failed because the pool is
// closed.
var ErrParserClosed = errors.New("treesitter parser pool is closed")

// ParserConfig configures parser lifecycle behavior.
type ParserConfig struct {
	// PoolSize controls the parser pool capacity. Zero or negative values
	// fall back to the number of CPUs.
	PoolSize int
}

// parser implements Parser over a channel-based pool of CGO parser
// instances and a shared tree cache.
type parser struct {
	pool      chan *tree_sitter.Parser
	poolSize  int
	closeCh   chan struct{}
	closeOnce sync.Once
	holders   sync.WaitGroup

	langMu sync.Mutex
	langs  map[string]*tree_sitter.Language

	treeCache *Cache
}

// NewParser creates a Parser with runtime defaults.
func NewParser() Parser {
	return NewParserWithConfig(ParserConfig{})
}

// NewParserWithConfig creates a Parser with explicit pool capacity.
func NewParserWithConfig(cfg ParserConfig) Parser {
	size := cfg.PoolSize
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if size <= 0 {
		size = 1
	}

	p := &parser{
		pool:      make(chan *tree_sitter.Parser, size),
		poolSize:  size,
		closeCh:   make(chan struct{}),
		langs:     make(map[string]*tree_sitter.Language, 8),
		treeCache: NewCache(0, 0),
	}
	for range size {
		p.pool <- tree_sitter.NewParser()
	}
	return p
}

// Languages returns supported language names.
func (p *parser) Languages() []string {
	return SupportedLanguages()
}

// SupportsLanguage reports whether lang has a runtime grammar.
func (p *parser) SupportsLanguage(lang string) bool {
	return p.language(lang) != nil
}

func (p *parser) language(lang string) *tree_sitter.Language {
	if lang == "" {
		return nil
	}
	p.langMu.Lock()
	defer p.langMu.Unlock()
	if l, ok := p.langs[lang]; ok {
		return l
	}
	l := languageForName(lang)
	if l != nil {
		p.langs[lang] = l
	}
	return l
}

// ParseTree parses content and returns a cloned tree the caller owns.
func (p *parser) ParseTree(ctx context.Context, path string, content []byte) (*tree_sitter.Tree, error) {
	lang := MapPath(path)
	if lang == "" {
		return nil, fmt.Errorf("unsupported file: %s", path)
	}
	tsLang := p.language(lang)
	if tsLang == nil {
		return nil, fmt.Errorf("no grammar loaded for %q", lang)
	}

	cacheKey := treeCacheKey(path, content)
	if tree, ok := p.treeCache.Get(cacheKey); ok {
		return tree, nil
	}

	tsParser, err := p.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer p.release(tsParser)

	if err := tsParser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("set parser language %q: %w", lang, err)
	}
	tree := tsParser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter parse returned nil for %s", path)
	}
	p.treeCache.Put(cacheKey, tree, content)
	return tree.Clone(), nil
}

func (p *parser) acquire(ctx context.Context) (*tree_sitter.Parser, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closeCh:
		return nil, ErrParserClosed
	case tsParser := <-p.pool:
		p.holders.Add(1)
		return tsParser, nil
	}
}

func (p *parser) release(tsParser *tree_sitter.Parser) {
	defer p.holders.Done()
	select {
	case p.pool <- tsParser:
	case <-p.closeCh:
		tsParser.Close()
	}
}

// Close releases pooled parsers and the tree cache.
func (p *parser) Close() error {
	p.closeOnce.Do(func() {
		close(p.closeCh)
		p.holders.Wait()
		for {
			select {
			case tsParser := <-p.pool:
				tsParser.Close()
			default:
				p.treeCache.Close()
				return
			}
		}
	})
	return nil
}
