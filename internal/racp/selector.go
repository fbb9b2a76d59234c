package racp

import (
	"context"
	"log/slog"
	"sort"
)

// selectLines sorts all lines by usefulness and greedily marks them taken
// under the token budget. It returns the cpaths of files in the order each
// was first reached; that order drives emission.
func (p *Postprocessor) selectLines(ctx context.Context, m *lineMatrix, tokensLimit int, singleFileMode bool) []string {
	sort.SliceStable(m.all, func(i, j int) bool {
		av := m.all[i].Useful + m.all[i].File.SymmetryBreaker
		bv := m.all[j].Useful + m.all[j].File.SymmetryBreaker
		return av > bv
	})

	tokensCount := 0
	linesTakeCnt := 0
	mentioned := make(map[string]struct{})
	var sequence []string
	for _, l := range m.all {
		if l.Useful <= p.settings.TakeFloor {
			continue
		}
		ntokens := p.countTokens(ctx, l.Content)
		cpath := l.File.Cpath
		if _, ok := mentioned[cpath]; !ok {
			mentioned[cpath] = struct{}{}
			sequence = append(sequence, cpath)
			if !singleFileMode {
				ntokens += p.countTokens(ctx, cpath)
				ntokens += 5 // file separator, newline, etc.
			}
		}
		if tokensCount+ntokens > tokensLimit {
			break
		}
		tokensCount += ntokens
		l.Take = true
		linesTakeCnt++
	}

	slog.Debug("Line selection done",
		"lines", len(m.all),
		"files", len(m.byCpath),
		"tokens", tokensCount,
		"tokens_limit", tokensLimit,
		"lines_taken", linesTakeCnt,
		"files_taken", len(sequence))
	return sequence
}

// countTokens returns the encoded length of text, treating tokenizer
// failures as zero length.
func (p *Postprocessor) countTokens(ctx context.Context, text string) int {
	tokens, err := p.tok.Encode(ctx, text)
	if err != nil {
		return 0
	}
	return len(tokens)
}
