// Package ollama provides a streaming text generator using Ollama's
// OpenAI-compatible API.
package ollama

import (
	"context"
	"errors"
	"io"
	"math"
	"time"

	openai "github.com/sashabaranov/go-openai"

	embedollama "github.com/custodia-labs/askdocs/internal/adapters/driven/embedding/ollama"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultModel   = "llama3.2"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the Ollama generator.
type Config struct {
	// BaseURL is the Ollama base URL (default: http://localhost:11434).
	BaseURL string

	// Model is the chat model to use (default: llama3.2).
	Model string

	// Timeout bounds a whole streamed completion (default: 120s).
	Timeout time.Duration
}

// Generator streams chat completions from Ollama.
type Generator struct {
	client *openai.Client
	model  string
}

// NewGenerator creates a new Ollama generator.
func NewGenerator(cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Generator{
		client: embedollama.NewClient(cfg.BaseURL, cfg.Timeout),
		model:  cfg.Model,
	}
}

// StreamComplete starts a streamed chat completion for prompt.
func (g *Generator) StreamComplete(ctx context.Context, prompt string, opts driven.GenerateOptions) (driven.TokenStream, error) {
	temperature := float32(opts.Temperature)
	if temperature == 0 {
		// A zero temperature is dropped by omitempty.
		temperature = math.SmallestNonzeroFloat32
	}

	stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, embedollama.WrapError(domain.ErrGenerationFailure, err)
	}
	return &tokenStream{stream: stream}, nil
}

// ModelName returns the name of the model being used.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the service is reachable by listing models.
// This is a lightweight check that validates connectivity without running inference.
func (g *Generator) Ping(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return embedollama.WrapError(domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}

// tokenStream adapts a chat completion stream to driven.TokenStream.
type tokenStream struct {
	stream  *openai.ChatCompletionStream
	current string
	err     error
}

func (t *tokenStream) Next() bool {
	if t.err != nil {
		return false
	}
	for {
		resp, err := t.stream.Recv()
		if errors.Is(err, io.EOF) {
			return false
		}
		if err != nil {
			t.err = embedollama.WrapError(domain.ErrGenerationFailure, err)
			return false
		}
		if len(resp.Choices) == 0 {
			continue
		}
		t.current = resp.Choices[0].Delta.Content
		return true
	}
}

func (t *tokenStream) Token() string {
	return t.current
}

func (t *tokenStream) Err() error {
	return t.err
}

func (t *tokenStream) Close() error {
	return t.stream.Close()
}
