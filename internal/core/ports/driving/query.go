package driving

import (
	"context"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// QueryService answers questions from the ingested corpus.
type QueryService interface {
	// Ask retrieves grounding context for the request and streams an answer.
	// Errors returned here happen before any token is produced.
	Ask(ctx context.Context, req domain.QueryRequest) (*domain.Stream, error)

	// AskDirect streams an answer without retrieval.
	AskDirect(ctx context.Context, question string) (*domain.Stream, error)

	// Retrieve returns the context window for a request without generating.
	Retrieve(ctx context.Context, req domain.QueryRequest) (domain.ContextWindow, error)

	// Embed returns the embedding of text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Describe reports the vector index configuration.
	Describe(ctx context.Context) (domain.IndexDescription, error)
}
