package driven

import "context"

// Generator produces text incrementally for a prompt.
//
// Implementations may include:
//   - OpenAI (gpt-4o-mini, gpt-4o)
//   - Ollama (local models over the OpenAI-compatible API)
type Generator interface {
	// StreamComplete starts a streamed completion. Cancelling ctx must stop
	// generation and unblock TokenStream.Next.
	StreamComplete(ctx context.Context, prompt string, opts GenerateOptions) (TokenStream, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// TokenStream is a finite, non-restartable sequence of generated tokens.
//
//	for stream.Next() {
//		use(stream.Token())
//	}
//	if err := stream.Err(); err != nil { ... }
type TokenStream interface {
	// Next advances to the next token. It returns false at the end of the
	// stream or on error.
	Next() bool

	// Token returns the current token.
	Token() string

	// Err returns the error that ended the stream, if any.
	Err() error

	// Close releases the underlying connection.
	Close() error
}

// GenerateOptions configures text generation behaviour.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate. Zero means provider default.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
