package racp

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/stitchcode/stitch/internal/treesitter"
)

// colorizeIfMoreUseful paints [line1, line2) with the given color and
// score, assigning only when the biased score beats the current one or the
// line is still uncolored. The 0.001 per-line bias resolves sort ties
// toward earlier lines.
func colorizeIfMoreUseful(lines []*Line, line1, line2 int, color string, useful float32) {
	for i := line1; i < line2; i++ {
		if i < 0 || i >= len(lines) {
			slog.Warn("Faulty range while coloring", "color", color, "line1", line1, "line2", line2)
			continue
		}
		u := useful - float32(i)*0.001
		l := lines[i]
		if l.Useful < u || l.Color == "" {
			l.Useful = u
			l.Color = color
		}
	}
}

// colorizeMinusOne disables [line1, line2) unconditionally.
func colorizeMinusOne(lines []*Line, line1, line2 int) {
	for i := line1; i < line2; i++ {
		if i < 0 || i >= len(lines) {
			continue
		}
		lines[i].Useful = -1.0
		lines[i].Color = "disabled"
	}
}

// setUsefulForLine applies the gradient write rule: a higher score wins,
// and a negative score always wins.
func setUsefulForLine(l *Line, useful float32, color string) {
	if l.Useful < useful || useful < 0 {
		l.Useful = useful
		l.Color = color
	}
}

// findLineParameters returns slope and intercept of the line through
// (x1,y1) and (x2,y2), or zeros when degenerate.
func findLineParameters(x1, y1, x2, y2 float32) (float32, float32) {
	if y2-y1 == 0 || x2-x1 == 0 {
		return 0, 0
	}
	m := (y2 - y1) / (x2 - x1)
	c := y1 - m*x1
	return m, c
}

// colorWithGradientType applies the hint's spatial falloff shape to the
// whole file. Line numbers are 1-based inside the shape formulas.
func colorWithGradientType(h Hint, lines []*Line) {
	if h.GradientType < 0 || h.GradientType > 4 {
		return
	}

	const tFadeAwayLines = 50
	l1 := float32(h.Line1)
	l2 := float32(h.Line2)
	m11, c11 := findLineParameters(l1, h.Usefulness, l1-tFadeAwayLines, 0)
	m12, c12 := findLineParameters(l1, h.Usefulness, l1+tFadeAwayLines, 0)
	m21, c21 := findLineParameters(l2, h.Usefulness, l2-tFadeAwayLines, 0)
	m22, c22 := findLineParameters(l2, h.Usefulness, l2+tFadeAwayLines, 0)

	color := "gradient_type: " + strconv.Itoa(h.GradientType)
	for i, line := range lines {
		lineN := i + 1
		n := float32(lineN)
		var useful float32
		switch h.GradientType {
		case 0:
			useful = h.Usefulness - n*0.001
		case 1:
			if lineN < h.Line1 {
				useful = max(n*m11+c11, 0)
			} else {
				useful = max(n*m12+c12, 0)
			}
		case 2:
			if lineN <= h.Line2 {
				useful = max(n*m21+c21, 0)
			} else {
				useful = -1
			}
		case 3:
			if lineN < h.Line1 {
				useful = -1
			} else {
				useful = max(n*m12+c12, 0)
			}
		case 4:
			switch {
			case lineN < h.Line1:
				useful = n*m11 + c11
			case lineN <= h.Line2:
				useful = 100.0
			default:
				useful = n*m22 + c22
			}
			useful = max(useful, 0)
		}
		setUsefulForLine(line, useful, color)
	}
}

// colorizeParentOf lifts every line whose color is a prefix of
// longChildPath (a color equal to it included), scaling between bg and
// maxUseful by how specific the existing color already is.
func colorizeParentOf(lines []*Line, longChildPath string, bg, maxUseful float32) {
	for i, l := range lines {
		if l.Color == "" || !strings.HasPrefix(longChildPath, l.Color) {
			continue
		}
		plen := float32(len(l.Color))
		long := float32(len(longChildPath))
		u := bg + (maxUseful-bg)*plen/long
		u -= float32(i) * 0.001
		if l.Useful < u {
			l.Useful = u
		}
	}
}

// colorizeCommentsUp walks bottom-to-top raising comment lines toward the
// score of the line below, so doc comments stick to their symbol.
func colorizeCommentsUp(lines []*Line, settings Settings) {
	for i := len(lines) - 2; i >= 0; i-- {
		u := lines[i+1].Useful * settings.CommentsPropagateUpCoef
		if lines[i].Color == "comment" && lines[i].Useful < u {
			lines[i].Useful = u
		}
	}
}

// downgradeLinesIfSubsymbol scales down [line1, line2) lines still colored
// by the symbol (or an ancestor) and retags them as the body subsymbol.
// Boundary lines whose trimmed content is a single character, such as a
// lone bracket, are kept intact.
func downgradeLinesIfSubsymbol(lines []*Line, line1, line2 int, subsymbol string, coef float32) {
	for i := line1; i < line2; i++ {
		if i < 0 || i >= len(lines) {
			continue
		}
		l := lines[i]
		if !strings.HasPrefix(subsymbol, l.Color) {
			continue
		}
		if i == line1 || i == line2-1 {
			if len(strings.TrimSpace(l.Content)) == 1 {
				continue
			}
		}
		l.Useful *= coef
		l.Color = subsymbol
	}
}

// closeSmallGaps replaces each interior score with max(own, min(prev,
// next)), computed against a snapshot so the pass reads pre-pass values.
func closeSmallGaps(lines []*Line) {
	if len(lines) == 0 {
		return
	}
	usefulCopy := make([]float32, len(lines))
	for i, l := range lines {
		usefulCopy[i] = l.Useful
	}
	for i := 1; i < len(lines)-1; i++ {
		support := min(lines[i-1].Useful, lines[i+1].Useful)
		usefulCopy[i] = max(lines[i].Useful, support)
	}
	for i, l := range lines {
		l.Useful = usefulCopy[i]
	}
}

// fillBackground colors every file's symbol ranges at the symbol default,
// then paints the remainder with the background score. Symbols are visited
// in path-length-ascending order so descendants overwrite ancestors.
func (p *Postprocessor) fillBackground(m *lineMatrix) {
	for _, cpath := range m.order {
		lines := m.byCpath[cpath]
		if len(lines) == 0 {
			continue
		}
		f := lines[0].File
		for _, s := range f.Markup.SymbolsSortedByPathLen {
			if s.SymbolType == treesitter.SymbolTypeComment {
				colorizeIfMoreUseful(lines, s.FullRange.StartRow, s.FullRange.EndRow+1, "comment", p.settings.UsefulSymbolDefault)
			} else {
				colorizeIfMoreUseful(lines, s.FullRange.StartRow, s.FullRange.EndRow+1, s.SymbolPath, p.settings.UsefulSymbolDefault)
			}
		}
		colorizeIfMoreUseful(lines, 0, len(lines), "empty", p.settings.UsefulBackground)
	}
}

// applyHints runs the per-hint coloring: gradient shape, disable ranges,
// symbol-aware scoring with parent lift, and comment propagation.
func (p *Postprocessor) applyHints(ctx context.Context, hints []Hint, m *lineMatrix) {
	for _, h := range hints {
		lines, ok := p.resolveHintLines(ctx, h, m)
		if !ok || len(lines) == 0 {
			continue
		}

		colorWithGradientType(h, lines)

		// Negative usefulness disables lines already present elsewhere,
		// e.g. a FIM prefix or suffix.
		if h.Usefulness < 0 {
			colorizeMinusOne(lines, max(h.Line1, 1)-1, h.Line2)
			continue
		}

		f := lines[0].File
		symbol := findSymbol(f, h.Symbol)
		if h.Symbol != uuid.Nil && symbol == nil {
			slog.Warn("Cannot find hint symbol in file",
				"symbol", h.Symbol, "file", h.FileName, "line1", h.Line1, "line2", h.Line2)
		}

		if !h.IsBodyImportant && symbol != nil {
			colorizeIfMoreUseful(lines, symbol.FullRange.StartRow, symbol.FullRange.EndRow+1, symbol.SymbolPath, h.Usefulness)
			if parent, ok := parentSymbolPath(symbol.SymbolPath); ok {
				// Make the enclosing scope stand out from the background
				// so the model can see where the symbol lives.
				colorizeParentOf(lines, parent, p.settings.UsefulSymbolDefault, h.Usefulness*p.settings.DegradeParentCoef)
			}
		} else {
			if h.Line1 == 0 || h.Line2 == 0 || h.Line1 > len(lines) || h.Line2 > len(lines) {
				slog.Warn("Hint range outside of file lines that actually exist",
					"file", h.FileName, "line1", h.Line1, "line2", h.Line2)
			}
			colorizeIfMoreUseful(lines, max(h.Line1, 1)-1, h.Line2, "nosymb", h.Usefulness)
		}

		colorizeCommentsUp(lines, p.settings)
	}
}

// resolveHintLines maps a hint's file name to a loaded line vector, trying
// nearest-filename correction before plain canonicalization.
func (p *Postprocessor) resolveHintLines(ctx context.Context, h Hint, m *lineMatrix) ([]*Line, bool) {
	name := h.FileName
	if nearest := p.paths.Nearest(ctx, h.FileName, 1); len(nearest) > 0 {
		name = nearest[0]
	}
	cpath, err := p.paths.Canonicalize(name)
	if err != nil {
		slog.Warn("File not found by name", "file", h.FileName, "err", err)
		return nil, false
	}
	lines, ok := m.byCpath[cpath]
	if !ok {
		slog.Warn("File not found by name or cpath", "file", h.FileName, "cpath", cpath)
		return nil, false
	}
	return lines, true
}

func findSymbol(f *AstFile, guid uuid.UUID) *treesitter.Symbol {
	if guid == uuid.Nil {
		return nil
	}
	for i := range f.Markup.SymbolsSortedByPathLen {
		if f.Markup.SymbolsSortedByPathLen[i].GUID == guid {
			return &f.Markup.SymbolsSortedByPathLen[i]
		}
	}
	return nil
}

// parentSymbolPath drops the last "::" segment: MyClass::f -> MyClass.
func parentSymbolPath(path string) (string, bool) {
	idx := strings.LastIndex(path, "::")
	if idx < 0 {
		return "", false
	}
	return path[:idx], true
}

// downgradeBodies makes declarations stronger than their bodies: lines of
// a symbol's definition range, clear of the declaration, are scaled down
// and retagged as "<path>::body".
func (p *Postprocessor) downgradeBodies(m *lineMatrix) {
	for _, cpath := range m.order {
		lines := m.byCpath[cpath]
		if len(lines) == 0 {
			continue
		}
		f := lines[0].File
		for _, s := range f.Markup.SymbolsSortedByPathLen {
			if s.DefinitionRange.EndByte == 0 {
				continue
			}
			def0 := max(s.DefinitionRange.StartRow, s.DeclarationRange.EndRow+1)
			def1 := s.DefinitionRange.EndRow + 1
			if def1 > def0 {
				// Lines colored with this symbol's path or an ancestor's are
				// downgraded; lines claimed by a nested symbol keep their score.
				downgradeLinesIfSubsymbol(lines, def0, def1, s.SymbolPath+"::body", p.settings.DegradeBodyCoef)
			}
		}
	}
}
