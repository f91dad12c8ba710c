// Package app wires adapters and services into a running askdocs instance.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/askdocs/internal/adapters/driven/ai"
	"github.com/custodia-labs/askdocs/internal/adapters/driven/config/file"
	"github.com/custodia-labs/askdocs/internal/adapters/driven/tokenizer/tiktoken"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/core/services"
	"github.com/custodia-labs/askdocs/internal/logger"
	"github.com/custodia-labs/askdocs/internal/normalisers"
	"github.com/custodia-labs/askdocs/internal/postprocessors/chunker"
)

// Options controls how much of the application is built.
type Options struct {
	// ConfigPath is the config file or directory. Empty means ~/.askdocs.
	ConfigPath string

	// PromptsDir overrides the prompt directory. Empty means a prompts
	// directory next to the config file.
	PromptsDir string

	// SkipGenerator builds the pipeline without an answer generator.
	SkipGenerator bool

	// Ping checks provider connectivity while building.
	Ping bool
}

// App holds the services built from settings.
type App struct {
	Settings  *services.SettingsService
	Query     *services.QueryService
	Ingestion *services.IngestionService

	// Warnings lists non-fatal problems met while building.
	Warnings []string

	resources *ai.InitResult
}

// LoadSettings opens the config store and returns the settings service.
func LoadSettings(configPath string) (*services.SettingsService, string, error) {
	store, err := file.NewConfigStore(configPath)
	if err != nil {
		return nil, "", fmt.Errorf("open config: %w", err)
	}
	return services.NewSettingsService(store), store.Path(), nil
}

// New builds the full application.
func New(ctx context.Context, opts Options) (*App, error) {
	settingsSvc, configFile, err := LoadSettings(opts.ConfigPath)
	if err != nil {
		return nil, err
	}
	settings, err := settingsSvc.Get()
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	promptsDir := opts.PromptsDir
	if promptsDir == "" {
		promptsDir = filepath.Join(filepath.Dir(configFile), "prompts")
	}
	prompts, err := file.NewPromptStore(promptsDir)
	if err != nil {
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	a, err := Build(ctx, *settings, prompts, opts)
	if err != nil {
		return nil, err
	}
	a.Settings = settingsSvc
	return a, nil
}

// Build wires services around settings. prompts may be nil to use the
// built-in templates.
func Build(ctx context.Context, settings domain.AppSettings, prompts driven.PromptStore, opts Options) (*App, error) {
	if err := settings.Chunker.Validate(); err != nil {
		return nil, err
	}

	res, err := ai.Initialise(ctx, settings, ai.Options{SkipGenerator: opts.SkipGenerator, Ping: opts.Ping})
	if err != nil {
		return nil, err
	}

	desc, err := res.VectorIndex.Describe(ctx)
	if err != nil {
		res.Close()
		return nil, fmt.Errorf("%w: describe index: %w", domain.ErrVectorIndexUnavailable, err)
	}
	if desc.Dimension != settings.VectorIndex.Dimensions {
		logger.Warn("index holds %d-dimension vectors, config says %d; using the index", desc.Dimension, settings.VectorIndex.Dimensions)
	}
	if got := res.EmbeddingService.Dimensions(); got > 0 && got != desc.Dimension {
		res.Close()
		return nil, &domain.DimensionMismatchError{Expected: desc.Dimension, Actual: got}
	}

	counter, err := tiktoken.NewOrEstimate()
	if err != nil {
		logger.Warn("token counter: %v", err)
	}

	splitter := chunker.New(
		chunker.WithChunkSize(settings.Chunker.ChunkSize),
		chunker.WithOverlap(settings.Chunker.Overlap),
	)

	ingestion := services.NewIngestionService(
		splitter,
		res.EmbeddingService,
		res.VectorIndex,
		normalisers.NewDefaultRegistry(),
		services.IngestionConfigFromSettings(settings.Ingestion),
	)

	retriever := services.NewRetriever(res.VectorIndex, counter, services.RetrieverConfig{
		Dimension:   desc.Dimension,
		TokenBudget: settings.Retrieval.TokenBudget,
	})
	answers := services.NewAnswerStreamer(res.Generator, prompts, services.AnswerConfig{
		Temperature: settings.LLM.Temperature,
	})
	query := services.NewQueryService(res.EmbeddingService, res.VectorIndex, retriever, answers, services.QueryConfig{
		TopK:      settings.Retrieval.TopK,
		Threshold: settings.Retrieval.ScoreThreshold,
	})

	for _, w := range res.Warnings {
		logger.Debug("startup warning: %s", w)
	}

	return &App{
		Query:     query,
		Ingestion: ingestion,
		Warnings:  res.Warnings,
		resources: res,
	}, nil
}

// Close releases provider clients and the vector index.
func (a *App) Close() {
	if a == nil || a.resources == nil {
		return
	}
	a.resources.Close()
	a.resources = nil
}
