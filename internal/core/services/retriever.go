package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// RetrieverConfig configures a Retriever.
type RetrieverConfig struct {
	// Dimension is the vector length queries must have.
	Dimension int

	// TokenBudget caps the rendered context in tokens. Zero disables the cap.
	TokenBudget int

	// Separator joins rendered entries. Defaults to domain.DefaultContextSeparator.
	Separator string
}

// Retriever turns a query vector into a context window.
type Retriever struct {
	index   driven.VectorIndex
	counter driven.TokenCounter
	cfg     RetrieverConfig
}

// NewRetriever creates a retriever. counter may be nil when no token
// budget is configured.
func NewRetriever(index driven.VectorIndex, counter driven.TokenCounter, cfg RetrieverConfig) *Retriever {
	if cfg.Separator == "" {
		cfg.Separator = domain.DefaultContextSeparator
	}
	return &Retriever{
		index:   index,
		counter: counter,
		cfg:     cfg,
	}
}

// Retrieve returns the top k records scoring at least threshold, best
// first. An empty window means nothing relevant was found.
func (r *Retriever) Retrieve(ctx context.Context, vector []float32, k int, threshold float64) (domain.ContextWindow, error) {
	if len(vector) != r.cfg.Dimension {
		return domain.ContextWindow{}, &domain.DimensionMismatchError{
			Expected: r.cfg.Dimension,
			Actual:   len(vector),
		}
	}
	if k <= 0 {
		return domain.ContextWindow{}, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	if r.index == nil {
		return domain.ContextWindow{}, domain.ErrVectorIndexUnavailable
	}

	results, err := r.index.Query(ctx, vector, k)
	if err != nil {
		if errors.Is(err, domain.ErrIndexQueryFailure) || errors.Is(err, domain.ErrDimensionMismatch) {
			return domain.ContextWindow{}, err
		}
		return domain.ContextWindow{}, fmt.Errorf("%w: %w", domain.ErrIndexQueryFailure, err)
	}

	results = rank(results, k, threshold)
	results = r.fitBudget(results)

	logger.Debug("Retrieved %d results above %.2f", len(results), threshold)
	return domain.NewContextWindow(results, r.cfg.Separator), nil
}

// rank orders results by descending score with ties broken by ascending
// id, drops those below threshold and keeps at most k.
func rank(results []domain.RetrievalResult, k int, threshold float64) []domain.RetrievalResult {
	ranked := slices.Clone(results)
	slices.SortStableFunc(ranked, func(a, b domain.RetrievalResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})

	kept := ranked[:0]
	for _, res := range ranked {
		if res.Score < threshold {
			continue
		}
		kept = append(kept, res)
	}
	if len(kept) > k {
		kept = kept[:k]
	}
	return kept
}

// fitBudget drops the lower-ranked results that would push the rendered
// context past the token budget. The best result is always kept.
func (r *Retriever) fitBudget(results []domain.RetrievalResult) []domain.RetrievalResult {
	if r.cfg.TokenBudget <= 0 || r.counter == nil || len(results) == 0 {
		return results
	}

	sepTokens := r.counter.Count(r.cfg.Separator)
	used := r.counter.Count(domain.RenderEntry(results[0]))
	for i := 1; i < len(results); i++ {
		cost := sepTokens + r.counter.Count(domain.RenderEntry(results[i]))
		if used+cost > r.cfg.TokenBudget {
			logger.Debug("Token budget %d reached, dropping %d results", r.cfg.TokenBudget, len(results)-i)
			return results[:i]
		}
		used += cost
	}
	return results
}
