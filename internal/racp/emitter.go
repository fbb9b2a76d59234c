package racp

import (
	"strings"

	"github.com/google/uuid"
)

// buildExcerpts writes one compact excerpt per file that had any line
// taken, in the order files were first reached during selection. Kept
// regions are separated by a single "...\n" elision.
func buildExcerpts(m *lineMatrix, sequence []string) []Excerpt {
	excerpts := make([]Excerpt, 0, len(sequence))
	for _, cpath := range sequence {
		lines := m.byCpath[cpath]
		if len(lines) == 0 {
			continue
		}

		var out strings.Builder
		firstLine := -1
		prevLine := -1
		lastLine := 0
		anything := false
		for i, l := range lines {
			lastLine = i
			if !l.Take {
				continue
			}
			anything = true
			if firstLine < 0 {
				firstLine = i
			}
			if prevLine >= 0 && i > prevLine+1 {
				out.WriteString("...\n")
			}
			out.WriteString(l.Content)
			out.WriteString("\n")
			prevLine = i
		}
		if !anything {
			continue
		}
		if lastLine > prevLine+1 {
			out.WriteString("...\n")
		}

		excerpts = append(excerpts, Excerpt{
			FileName:     cpath,
			FileContent:  out.String(),
			Line1:        firstLine,
			Line2:        lastLine,
			Symbol:       uuid.Nil,
			GradientType: -1,
		})
	}
	return excerpts
}
