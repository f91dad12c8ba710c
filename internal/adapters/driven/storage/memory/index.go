package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/vectors"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// Ensure VectorIndex implements the interface.
var _ driven.VectorIndex = (*VectorIndex)(nil)

type entry struct {
	record   domain.IndexRecord
	sourceID string
	index    int
}

// VectorIndex is an in-memory vector index using brute-force cosine
// similarity. Nothing is persisted.
type VectorIndex struct {
	mu        sync.RWMutex
	dimension int
	entries   map[string]entry
}

// NewVectorIndex creates an empty index for vectors of the given dimension.
func NewVectorIndex(dimension int) (*VectorIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidInput, dimension)
	}
	return &VectorIndex{
		dimension: dimension,
		entries:   make(map[string]entry),
	}, nil
}

// Upsert inserts records, replacing any with the same id. The whole batch
// is rejected if any vector has the wrong dimension.
func (v *VectorIndex) Upsert(ctx context.Context, records []domain.IndexRecord) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailure, err)
	}
	for _, r := range records {
		if err := vectors.CheckDimension(r.Vector, v.dimension); err != nil {
			return err
		}
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, r := range records {
		sourceID, index, ok := domain.ParseRecordID(r.ID)
		if !ok {
			sourceID, index = r.ID, 0
		}
		r.Vector = slices.Clone(r.Vector)
		r.Metadata = maps.Clone(r.Metadata)
		v.entries[r.ID] = entry{record: r, sourceID: sourceID, index: index}
	}
	return nil
}

// Query returns up to k records closest to vector, best first.
func (v *VectorIndex) Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexQueryFailure, err)
	}
	if err := vectors.CheckDimension(vector, v.dimension); err != nil {
		return nil, err
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	top := vectors.NewTopK(k)
	for _, e := range v.entries {
		top.Add(domain.RetrievalResult{
			Record: e.record,
			Score:  vectors.Cosine(vector, e.record.Vector),
		})
	}
	return top.Results(), nil
}

// Describe reports the index dimension and record count.
func (v *VectorIndex) Describe(_ context.Context) (domain.IndexDescription, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return domain.IndexDescription{
		Dimension: v.dimension,
		Metric:    domain.MetricCosine,
		Count:     len(v.entries),
	}, nil
}

// DeleteSource removes the records of sourceID from fromIndex onwards.
func (v *VectorIndex) DeleteSource(_ context.Context, sourceID string, fromIndex int) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for id, e := range v.entries {
		if e.sourceID == sourceID && e.index >= fromIndex {
			delete(v.entries, id)
		}
	}
	return nil
}

// Close releases resources.
func (v *VectorIndex) Close() error {
	return nil
}
