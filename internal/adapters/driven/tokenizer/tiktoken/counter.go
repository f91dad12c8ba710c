// Package tiktoken counts model tokens with OpenAI's BPE encodings.
package tiktoken

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// DefaultEncoding is used by the embedding and chat models askdocs targets.
const DefaultEncoding = "cl100k_base"

var (
	_ driven.TokenCounter = (*Counter)(nil)
	_ driven.TokenCounter = Estimator{}
)

// Counter counts tokens with a tiktoken encoding.
type Counter struct {
	mu       sync.Mutex
	encoding *tiktoken.Tiktoken
}

// New loads the named encoding. The first load may download the BPE ranks,
// so callers that must work offline should fall back to Estimator.
func New(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %s: %w", encoding, err)
	}
	return &Counter{encoding: enc}, nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	// The encoder caches internally and is not documented as goroutine safe.
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.encoding.Encode(text, nil, nil))
}

// Estimator approximates token counts at four bytes per token, rounding up.
type Estimator struct{}

// Count returns the estimated number of tokens in text.
func (Estimator) Count(text string) int {
	return (len(text) + 3) / 4
}

// NewOrEstimate returns a Counter for the default encoding, or an Estimator
// when the encoding cannot be loaded.
func NewOrEstimate() (driven.TokenCounter, error) {
	c, err := New(DefaultEncoding)
	if err != nil {
		return Estimator{}, err
	}
	return c, nil
}
