// Package tokens estimates prompt sizes for logging.
package tokens

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"

	"github.com/tjfontaine/mcp-chat/internal/domain"
)

// Counter estimates the prompt tokens of a model request.
type Counter interface {
	Count(req *domain.ModelRequest) int
}

// Chat formatting overhead, following OpenAI's accounting for chat models.
const (
	tokensPerMessage = 3
	tokensPerRole    = 1
	tokensPerCall    = 3
	tokensPerTool    = 7
	assistantPriming = 3
)

// Tiktoken counts with a BPE encoding chosen from the model name. Models
// outside the OpenAI families are counted with cl100k_base, which is close
// enough for logging. If no codec can be loaded it falls back to an
// Estimator.
type Tiktoken struct {
	fallback *Estimator

	mu     sync.RWMutex
	codecs map[tokenizer.Encoding]tokenizer.Codec
}

// NewTiktoken creates a tiktoken-backed counter.
func NewTiktoken() *Tiktoken {
	return &Tiktoken{
		fallback: NewEstimator(),
		codecs:   make(map[tokenizer.Encoding]tokenizer.Codec),
	}
}

func (t *Tiktoken) codec(model string) (tokenizer.Codec, error) {
	enc := encodingFor(model)

	t.mu.RLock()
	c, ok := t.codecs[enc]
	t.mu.RUnlock()
	if ok {
		return c, nil
	}

	c, err := tokenizer.Get(enc)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.codecs[enc] = c
	t.mu.Unlock()
	return c, nil
}

// Count implements Counter.
func (t *Tiktoken) Count(req *domain.ModelRequest) int {
	codec, err := t.codec(req.Model)
	if err != nil {
		return t.fallback.Count(req)
	}
	encode := func(s string) int {
		if s == "" {
			return 0
		}
		ids, _, err := codec.Encode(s)
		if err != nil {
			return len(s) / 4
		}
		return len(ids)
	}

	total := 0
	for _, m := range req.Messages {
		total += tokensPerMessage + tokensPerRole
		total += encode(m.Content)
		for _, tc := range m.ToolCalls {
			total += encode(tc.ToolName) + encode(tc.ArgumentsJSON()) + tokensPerCall
		}
	}
	for _, tool := range req.Tools {
		total += encode(tool.Name) + encode(tool.Description) + tokensPerTool
		if tool.InputSchema != nil {
			b, _ := json.Marshal(tool.InputSchema)
			total += encode(string(b))
		}
	}
	return total + assistantPriming
}

// CountText counts the tokens of a single string.
func (t *Tiktoken) CountText(model, text string) (int, error) {
	codec, err := t.codec(model)
	if err != nil {
		return 0, err
	}
	ids, _, err := codec.Encode(text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

// encodingFor maps a model name to its tiktoken encoding.
//
//   - o200k_base: gpt-5, gpt-4.1, gpt-4o and the o-series reasoning models
//   - cl100k_base: gpt-4, gpt-3.5 and everything else
func encodingFor(model string) tokenizer.Encoding {
	model = strings.ToLower(model)
	switch {
	case strings.HasPrefix(model, "gpt-5"),
		strings.HasPrefix(model, "gpt-4.1"),
		strings.HasPrefix(model, "gpt-4o"),
		strings.HasPrefix(model, "o1"),
		strings.HasPrefix(model, "o3"),
		strings.HasPrefix(model, "o4"):
		return tokenizer.O200kBase
	default:
		return tokenizer.Cl100kBase
	}
}

// Estimator approximates tokens from character counts.
type Estimator struct {
	// CharsPerToken is the average characters per token (default: 4)
	CharsPerToken float64
}

// NewEstimator creates a new token estimator.
func NewEstimator() *Estimator {
	return &Estimator{CharsPerToken: 4.0}
}

// Count implements Counter.
func (e *Estimator) Count(req *domain.ModelRequest) int {
	chars := 0
	for _, m := range req.Messages {
		chars += len(m.Role) + len(m.Content) + 4
		for _, tc := range m.ToolCalls {
			chars += len(tc.ToolName) + len(tc.ArgumentsJSON())
		}
	}
	for _, tool := range req.Tools {
		// Schemas add roughly 50 characters each.
		chars += len(tool.Name) + len(tool.Description) + 50
	}
	return int(float64(chars) / e.CharsPerToken)
}
