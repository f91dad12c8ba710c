package driven

import (
	"context"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// VectorIndex stores index records and answers nearest-neighbour queries.
// The index has a fixed dimension; writes with any other vector length are
// rejected with domain.ErrDimensionMismatch.
type VectorIndex interface {
	// Upsert inserts records, replacing any with the same id.
	// Failures wrap domain.ErrIndexWriteFailure.
	Upsert(ctx context.Context, records []domain.IndexRecord) error

	// Query returns up to k records closest to vector, best first.
	// Failures wrap domain.ErrIndexQueryFailure.
	Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error)

	// Describe reports the index dimension and metric.
	Describe(ctx context.Context) (domain.IndexDescription, error)

	// DeleteSource removes the records of sourceID whose chunk index is at
	// least fromIndex. Zero removes the whole source.
	DeleteSource(ctx context.Context, sourceID string, fromIndex int) error

	// Close releases resources.
	Close() error
}
