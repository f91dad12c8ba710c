// Package openai provides a streaming text generator using the OpenAI API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/ssestream"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// Ensure Generator implements the interface.
var _ driven.Generator = (*Generator)(nil)

// Default configuration values.
const (
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI generator.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Can be changed for compatible APIs.
	BaseURL string

	// Model is the chat model to use (default: gpt-4o-mini).
	Model string

	// Timeout bounds a whole streamed completion (default: 120s).
	Timeout time.Duration

	// HTTPClient replaces the default HTTP client.
	HTTPClient *http.Client
}

// Generator streams chat completions from the OpenAI API.
type Generator struct {
	client openai.Client
	model  string
}

// NewGenerator creates a new OpenAI generator.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: openai API key is required", domain.ErrLLMUnavailable)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Generator{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}, nil
}

// StreamComplete starts a streamed chat completion for prompt.
func (g *Generator) StreamComplete(ctx context.Context, prompt string, opts driven.GenerateOptions) (driven.TokenStream, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(g.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(opts.Temperature),
	}
	if opts.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(opts.MaxTokens))
	}

	return &tokenStream{stream: g.client.Chat.Completions.NewStreaming(ctx, params)}, nil
}

// ModelName returns the name of the model being used.
func (g *Generator) ModelName() string {
	return g.model
}

// Ping validates the API key and model by retrieving the model.
func (g *Generator) Ping(ctx context.Context) error {
	if _, err := g.client.Models.Get(ctx, g.model); err != nil {
		return wrapError(domain.ErrLLMUnavailable, err)
	}
	return nil
}

// Close releases resources.
func (g *Generator) Close() error {
	return nil
}

// tokenStream adapts an SSE chunk stream to driven.TokenStream.
type tokenStream struct {
	stream  *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (t *tokenStream) Next() bool {
	for t.stream.Next() {
		chunk := t.stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		t.current = chunk.Choices[0].Delta.Content
		return true
	}
	return false
}

func (t *tokenStream) Token() string {
	return t.current
}

func (t *tokenStream) Err() error {
	if err := t.stream.Err(); err != nil {
		return wrapError(domain.ErrGenerationFailure, err)
	}
	return nil
}

func (t *tokenStream) Close() error {
	return t.stream.Close()
}

func wrapError(sentinel, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return fmt.Errorf("%w: openai status %d: %s", sentinel, apiErr.StatusCode, apiErr.Message)
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
