package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/core/ports/driving"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// Ensure QueryService implements the interface.
var _ driving.QueryService = (*QueryService)(nil)

// QueryConfig holds query-time defaults.
type QueryConfig struct {
	// TopK is the number of neighbours requested when the request sets none.
	TopK int

	// Threshold drops results scoring below it unless the request overrides it.
	Threshold float64
}

// QueryService answers questions. Every failure before streaming starts
// is returned as an error and nothing is streamed.
type QueryService struct {
	embedder  driven.EmbeddingService
	index     driven.VectorIndex
	retriever *Retriever
	answers   *AnswerStreamer
	cfg       QueryConfig
}

// NewQueryService creates a new query service.
func NewQueryService(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	retriever *Retriever,
	answers *AnswerStreamer,
	cfg QueryConfig,
) *QueryService {
	if cfg.TopK <= 0 {
		cfg.TopK = domain.DefaultTopK
	}
	return &QueryService{
		embedder:  embedder,
		index:     index,
		retriever: retriever,
		answers:   answers,
		cfg:       cfg,
	}
}

// Ask retrieves context for the question and streams a grounded answer.
func (s *QueryService) Ask(ctx context.Context, req domain.QueryRequest) (*domain.Stream, error) {
	question := req.EffectiveQuestion()
	window, err := s.Retrieve(ctx, req)
	if err != nil {
		return nil, err
	}

	logger.Debug("Answering %q with %d context entries", question, len(window.Entries))
	return s.answers.Answer(ctx, question, window), nil
}

// AskDirect streams an answer without retrieval.
func (s *QueryService) AskDirect(ctx context.Context, question string) (*domain.Stream, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}
	return s.answers.Direct(ctx, question), nil
}

// Retrieve returns the context window Ask would ground its answer in.
func (s *QueryService) Retrieve(ctx context.Context, req domain.QueryRequest) (domain.ContextWindow, error) {
	if strings.TrimSpace(req.Question) == "" {
		return domain.ContextWindow{}, fmt.Errorf("%w: question is required", domain.ErrInvalidInput)
	}

	vector := req.QueryVector
	if len(vector) == 0 {
		v, err := s.Embed(ctx, req.EffectiveQuestion())
		if err != nil {
			return domain.ContextWindow{}, err
		}
		vector = v
	}

	k := s.cfg.TopK
	if req.TopK > 0 {
		k = req.TopK
	}
	threshold := s.cfg.Threshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}

	return s.retriever.Retrieve(ctx, vector, k, threshold)
}

// Embed returns the embedding of text.
func (s *QueryService) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", domain.ErrInvalidInput)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingFailure) || ctx.Err() != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailure, err)
	}
	return vec, nil
}

// Describe reports the vector index configuration.
func (s *QueryService) Describe(ctx context.Context) (domain.IndexDescription, error) {
	if s.index == nil {
		return domain.IndexDescription{}, domain.ErrVectorIndexUnavailable
	}
	return s.index.Describe(ctx)
}
