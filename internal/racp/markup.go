package racp

import (
	"context"
	"log/slog"
	"math"
	"slices"

	"github.com/zeebo/xxh3"

	"github.com/stitchcode/stitch/internal/treesitter"
)

// AstFile is one referenced file with its symbol markup. Read-only after
// construction; every Line of the file points back at it.
type AstFile struct {
	Markup *treesitter.FileMarkup
	Cpath  string

	// SymmetryBreaker is a stable per-file offset in [0, 0.01) added to
	// every sort key so lines of equal usefulness rank deterministically
	// across files. Its scale sits above the per-line 0.001 bias.
	SymmetryBreaker float32
}

// loadedFiles keeps files in first-hint order so the whole pipeline is a
// pure function of its inputs.
type loadedFiles struct {
	byName map[string]*AstFile
	order  []*AstFile
}

// loadMarkup turns each distinct hint file name into an AstFile. Missing
// files are dropped with a log line; missing AST markup degrades to a
// symbol-free record.
func (p *Postprocessor) loadMarkup(ctx context.Context, hints []Hint) *loadedFiles {
	files := &loadedFiles{byName: make(map[string]*AstFile, len(hints))}
	for _, h := range hints {
		if _, ok := files.byName[h.FileName]; ok {
			continue
		}
		cpath, err := p.paths.Canonicalize(h.FileName)
		if err != nil {
			slog.Warn("Cannot canonicalize hint file", "file", h.FileName, "err", err)
			continue
		}

		text := h.FileContent
		if text == "" {
			text, err = p.reader.ReadText(ctx, cpath)
			if err != nil {
				slog.Warn("Cannot read hint file", "file", h.FileName, "cpath", cpath, "err", err)
				continue
			}
		}

		f := &AstFile{
			Cpath:           cpath,
			SymmetryBreaker: symmetryBreaker(cpath),
		}
		markup, err := p.fileMarkup(ctx, cpath, text)
		if err != nil {
			slog.Warn("File markup unavailable, using plain text", "file", h.FileName, "err", err)
			markup = &treesitter.FileMarkup{Cpath: cpath, FileContent: text}
		}
		f.Markup = markup

		files.byName[h.FileName] = f
		files.order = append(files.order, f)
	}
	return files
}

func (p *Postprocessor) fileMarkup(ctx context.Context, cpath, text string) (*treesitter.FileMarkup, error) {
	if p.ast == nil {
		return &treesitter.FileMarkup{Cpath: cpath, FileContent: text}, nil
	}
	markup, err := p.ast.FileMarkup(ctx, cpath, text)
	if err != nil {
		return nil, err
	}
	// Descendants must overwrite ancestors during coloring, so the
	// length-ascending order is an owned invariant, not an assumption
	// about the service.
	slices.SortStableFunc(markup.SymbolsSortedByPathLen, func(a, b treesitter.Symbol) int {
		return len(a.SymbolPath) - len(b.SymbolPath)
	})
	return markup, nil
}

func symmetryBreaker(cpath string) float32 {
	return float32(xxh3.HashString(cpath)) / float32(math.MaxUint64) / 100.0
}
