// Package racp implements the retrieval-augmented context postprocessor:
// it takes scored hints about regions of files, colors every line of every
// referenced file with a usefulness score, then greedily selects lines
// under a token budget and emits condensed per-file excerpts.
package racp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stitchcode/stitch/internal/treesitter"
)

// ErrInvalidInput marks programming faults detected before any work begins.
var ErrInvalidInput = errors.New("racp: invalid input")

// Hint ties a file region (and optionally a symbol) to a usefulness score
// and a spatial falloff shape. Line numbers are 1-based inclusive and may
// be zero when unknown.
type Hint struct {
	FileName        string    `json:"file_name"`
	FileContent     string    `json:"file_content,omitempty"`
	Line1           int       `json:"line1"`
	Line2           int       `json:"line2"`
	Symbol          uuid.UUID `json:"symbol,omitempty"`
	GradientType    int       `json:"gradient_type"`
	Usefulness      float32   `json:"usefulness"`
	IsBodyImportant bool      `json:"is_body_important"`
}

// Excerpt is a single file's compressed output with "..." elisions between
// kept regions. Line1 and Line2 are 0-based: the first taken line index
// and the last scanned index.
type Excerpt struct {
	FileName        string    `json:"file_name"`
	FileContent     string    `json:"file_content"`
	Line1           int       `json:"line1"`
	Line2           int       `json:"line2"`
	Symbol          uuid.UUID `json:"symbol"`
	GradientType    int       `json:"gradient_type"`
	Usefulness      float32   `json:"usefulness"`
	IsBodyImportant bool      `json:"is_body_important"`
}

// AstService produces symbol markup for a canonical path. The content
// argument is authoritative; implementations must not re-read the file.
type AstService interface {
	FileMarkup(ctx context.Context, cpath string, content string) (*treesitter.FileMarkup, error)
}

// TextReader loads file text for a canonical path.
type TextReader interface {
	ReadText(ctx context.Context, cpath string) (string, error)
}

// PathResolver canonicalizes file names and suggests nearest matches for
// names that do not resolve as-is.
type PathResolver interface {
	Canonicalize(name string) (string, error)
	Nearest(ctx context.Context, name string, k int) []string
}

// Tokenizer encodes text into model tokens.
type Tokenizer interface {
	Encode(ctx context.Context, text string) ([]int, error)
}

// Settings holds the scoring knobs of the postprocessor.
type Settings struct {
	// UsefulBackground is written to every line not covered by a symbol.
	UsefulBackground float32
	// UsefulSymbolDefault is the score for a line inside any symbol range
	// before hints are applied.
	UsefulSymbolDefault float32
	// DegradeParentCoef scales a hint's usefulness when lifting the
	// enclosing symbol.
	DegradeParentCoef float32
	// DegradeBodyCoef scales a symbol's body lines below its declaration.
	DegradeBodyCoef float32
	// CommentsPropagateUpCoef is the factor by which a comment line
	// inherits the score of the line below it.
	CommentsPropagateUpCoef float32
	// CloseSmallGaps bridges one-line score dips between useful lines.
	CloseSmallGaps bool
	// TakeFloor is the strict lower bound for selection.
	TakeFloor float32
}

// DefaultSettings returns the standard scoring configuration.
func DefaultSettings() Settings {
	return Settings{
		UsefulBackground:        5.0,
		UsefulSymbolDefault:     10.0,
		DegradeParentCoef:       0.6,
		DegradeBodyCoef:         0.8,
		CommentsPropagateUpCoef: 0.99,
		CloseSmallGaps:          true,
		TakeFloor:               0.0,
	}
}

// Postprocessor runs the pipeline over injected capabilities. All state is
// per-call; a Postprocessor is safe for concurrent use.
type Postprocessor struct {
	ast      AstService
	reader   TextReader
	paths    PathResolver
	tok      Tokenizer
	settings Settings
}

// New creates a Postprocessor over the given capabilities.
func New(ast AstService, reader TextReader, paths PathResolver, tok Tokenizer, settings Settings) *Postprocessor {
	return &Postprocessor{
		ast:      ast,
		reader:   reader,
		paths:    paths,
		tok:      tok,
		settings: settings,
	}
}

// Postprocess condenses the hinted file regions into token-budgeted
// excerpts. It always returns a (possibly empty) slice; the only errors
// are programming faults detected up front.
func (p *Postprocessor) Postprocess(ctx context.Context, hints []Hint, tokensLimit int, singleFileMode bool) ([]Excerpt, error) {
	if err := validateInput(hints, tokensLimit); err != nil {
		return nil, err
	}

	files := p.loadMarkup(ctx, hints)
	m := newLineMatrix(files)

	p.fillBackground(m)
	p.applyHints(ctx, hints, m)
	p.downgradeBodies(m)
	if p.settings.CloseSmallGaps {
		for _, cpath := range m.order {
			closeSmallGaps(m.byCpath[cpath])
		}
	}

	sequence := p.selectLines(ctx, m, tokensLimit, singleFileMode)
	return buildExcerpts(m, sequence), nil
}

func validateInput(hints []Hint, tokensLimit int) error {
	if tokensLimit < 0 {
		return fmt.Errorf("%w: negative tokens limit %d", ErrInvalidInput, tokensLimit)
	}
	for i, h := range hints {
		if h.Usefulness >= 0 && h.Line1 > h.Line2 {
			return fmt.Errorf("%w: hint %d for %q has line1 %d > line2 %d",
				ErrInvalidInput, i, h.FileName, h.Line1, h.Line2)
		}
	}
	return nil
}
