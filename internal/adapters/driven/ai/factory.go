// Package ai provides factory functions for creating AI service adapters
// and the vector index from application settings.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	ollamaembed "github.com/custodia-labs/askdocs/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/askdocs/internal/adapters/driven/embedding/openai"
	ollamallm "github.com/custodia-labs/askdocs/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/askdocs/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/pgvector"
	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the services built from settings.
type InitResult struct {
	EmbeddingService driven.EmbeddingService
	Generator        driven.Generator
	VectorIndex      driven.VectorIndex
	Warnings         []string // Non-fatal issues, such as an unreachable generator.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.EmbeddingService != nil {
		r.EmbeddingService.Close()
	}
	if r.VectorIndex != nil {
		r.VectorIndex.Close()
	}
	if r.Generator != nil {
		r.Generator.Close()
	}
}

// Options controls which services Initialise builds.
type Options struct {
	// SkipGenerator leaves Generator nil, for commands that never answer.
	SkipGenerator bool

	// Ping validates provider connectivity before returning.
	Ping bool
}

// Initialise builds the embedding service, generator and vector index.
// The embedding service and index are required. A generator that cannot be
// built or reached is reported as a warning so ingestion still works.
func Initialise(ctx context.Context, settings domain.AppSettings, opts Options) (*InitResult, error) {
	result := &InitResult{}

	embedder, err := createEmbedding(ctx, settings.Embedding, opts.Ping)
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding provider is not configured", domain.ErrEmbeddingUnavailable)
	}
	result.EmbeddingService = embedder

	index, err := CreateVectorIndex(ctx, settings.VectorIndex)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.VectorIndex = index

	if opts.SkipGenerator {
		return result, nil
	}

	generator, err := createGenerator(ctx, settings.LLM, opts.Ping)
	switch {
	case err != nil:
		logger.Warn("generator unavailable: %v", err)
		result.Warnings = append(result.Warnings, err.Error())
	case generator == nil:
		result.Warnings = append(result.Warnings, "generator provider is not configured")
	default:
		result.Generator = generator
	}

	return result, nil
}

func createEmbedding(ctx context.Context, settings domain.EmbeddingSettings, ping bool) (driven.EmbeddingService, error) {
	if ping {
		return CreateAndValidateEmbeddingService(ctx, settings)
	}
	return CreateEmbeddingService(settings)
}

func createGenerator(ctx context.Context, settings domain.LLMSettings, ping bool) (driven.Generator, error) {
	if ping {
		return CreateAndValidateGenerator(ctx, settings)
	}
	return CreateGenerator(settings)
}

// CreateAndValidateEmbeddingService creates an embedding service and validates connectivity.
// Returns the service if successful, or an error with guidance.
func CreateAndValidateEmbeddingService(ctx context.Context, settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	svc, err := CreateEmbeddingService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w. Check the embedding section of your config", err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrEmbeddingUnavailable, err)
	}

	return svc, nil
}

// CreateAndValidateGenerator creates a generator and validates connectivity.
// Returns the generator if successful, or an error with guidance.
func CreateAndValidateGenerator(ctx context.Context, settings domain.LLMSettings) (driven.Generator, error) {
	gen, err := CreateGenerator(settings)
	if err != nil {
		return nil, fmt.Errorf("%w. Check the llm section of your config", err)
	}
	if gen == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := gen.Ping(ctx); err != nil {
		gen.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w)", domain.ErrLLMUnavailable, err)
	}

	return gen, nil
}

// CreateEmbeddingService creates the appropriate embedding service based on settings.
// Returns nil if the provider is not configured.
func CreateEmbeddingService(settings domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.EffectiveDimensions(),
		})

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported embedding provider: %s", domain.ErrEmbeddingUnavailable, settings.Provider)
	}
}

// CreateGenerator creates the appropriate generator based on settings.
// Returns nil if the provider is not configured.
func CreateGenerator(settings domain.LLMSettings) (driven.Generator, error) {
	if !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewGenerator(ollamallm.Config{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewGenerator(openaillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("%w: unsupported LLM provider: %s", domain.ErrLLMUnavailable, settings.Provider)
	}
}

// CreateVectorIndex opens the configured vector index backend.
func CreateVectorIndex(ctx context.Context, settings domain.VectorIndexSettings) (driven.VectorIndex, error) {
	if settings.Dimensions <= 0 {
		return nil, fmt.Errorf("%w: vector index dimensions must be positive", domain.ErrInvalidInput)
	}

	switch settings.Backend {
	case domain.VectorBackendMemory:
		return memory.NewVectorIndex(settings.Dimensions)

	case domain.VectorBackendSQLite, "":
		return sqlite.NewVectorIndex(settings.DataDir, settings.Dimensions)

	case domain.VectorBackendPGVector:
		if settings.DSN == "" {
			return nil, errors.New("pgvector backend requires vector_index.dsn")
		}
		return pgvector.NewVectorIndex(ctx, settings.DSN, settings.Dimensions)

	default:
		return nil, fmt.Errorf("unsupported vector index backend: %s", settings.Backend)
	}
}
