// Package tokenizer provides token counting for budget planning: tiktoken
// encodings when available, a chars-per-token heuristic otherwise.
package tokenizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

const (
	// encodingCL100kBase is the cl100k_base encoding used by GPT-4 and as
	// an approximation for Anthropic and Google models.
	encodingCL100kBase = "cl100k_base"

	// encodingO200kBase is the o200k_base encoding used by GPT-4o family
	// models.
	encodingO200kBase = "o200k_base"
)

// Encoder produces model tokens for text.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]int, error)
}

// Tiktoken encodes text with a tiktoken encoding.
type Tiktoken struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktoken creates an encoder for the given encoding name
// (e.g. "cl100k_base", "o200k_base").
func NewTiktoken(encodingName string) (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingName, err)
	}
	return &Tiktoken{encoding: enc}, nil
}

// NewForModel resolves the encoding from a model string. GPT-4o and o1
// family models use o200k_base; everything else — including Anthropic and Google
// models, whose native tokenizers are not public — approximates with
// cl100k_base.
func NewForModel(model string) (*Tiktoken, error) {
	name := encodingNameForModel(model)
	enc, err := NewTiktoken(name)
	if err != nil && name == encodingO200kBase {
		slog.Warn("Failed to load o200k_base, falling back to cl100k_base", "err", err)
		return NewTiktoken(encodingCL100kBase)
	}
	return enc, err
}

// Encode returns the token ids of text.
func (t *Tiktoken) Encode(_ context.Context, text string) ([]int, error) {
	return t.encoding.Encode(text, nil, nil), nil
}

func encodingNameForModel(model string) string {
	if strings.HasPrefix(model, "gpt-4o") || strings.HasPrefix(model, "o1") {
		return encodingO200kBase
	}
	return encodingCL100kBase
}

// Registry caches one encoder per encoding name and degrades to the
// chars-per-token heuristic when an encoding cannot be loaded.
type Registry struct {
	mu       sync.Mutex
	encoders map[string]Encoder
}

// NewRegistry creates an empty encoder registry.
func NewRegistry() *Registry {
	return &Registry{encoders: make(map[string]Encoder, 2)}
}

// ForModel returns a cached encoder for the model. It never fails: when
// no tiktoken encoding can be loaded the heuristic estimator takes over,
// so budget counting keeps working offline.
func (r *Registry) ForModel(model string) Encoder {
	name := encodingNameForModel(model)

	r.mu.Lock()
	defer r.mu.Unlock()
	if enc, ok := r.encoders[name]; ok {
		return enc
	}

	var enc Encoder
	tk, err := NewForModel(model)
	if err != nil {
		slog.Warn("Failed to load tiktoken encoding, using heuristic estimate",
			"encoding", name, "err", err)
		enc = Heuristic{}
	} else {
		enc = tk
	}
	r.encoders[name] = enc
	return enc
}

// Heuristic is the offline fallback encoder: it fabricates one token per
// estimated chars-per-token slot. Lang selects the ratio; empty means the
// default mixed-language ratio.
type Heuristic struct {
	Lang string
}

// Encode returns placeholder token ids sized by the heuristic estimate.
func (h Heuristic) Encode(_ context.Context, text string) ([]int, error) {
	return make([]int, EstimateTokens(text, h.Lang)), nil
}

var charsPerToken = map[string]float64{
	"go":         3.2,
	"rust":       3.2,
	"c":          3.2,
	"cpp":        3.2,
	"python":     3.8,
	"ruby":       3.8,
	"java":       3.4,
	"javascript": 3.5,
	"typescript": 3.5,
	"json":       3.0,
	"yaml":       3.0,
	"default":    3.5,
}

// EstimateTokens returns ceiling(len(text)/ratio) for the language; the
// Heuristic encoder serves it when no tiktoken encoding is available.
func EstimateTokens(text, lang string) int {
	ratio := charsPerToken["default"]
	if r, ok := charsPerToken[strings.ToLower(strings.TrimSpace(lang))]; ok && r > 0 {
		ratio = r
	}
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len(text)) / ratio))
}
