package services

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider     = "embedding.provider"
	keyEmbedModel        = "embedding.model"
	keyEmbedBaseURL      = "embedding.base_url"
	keyEmbedAPIKey       = "embedding.api_key"
	keyEmbedDims         = "embedding.dimensions"
	keyLLMProvider       = "llm.provider"
	keyLLMModel          = "llm.model"
	keyLLMBaseURL        = "llm.base_url"
	keyLLMAPIKey         = "llm.api_key"
	keyLLMTemperature    = "llm.temperature"
	keyVectorBackend     = "vector_index.backend"
	keyVectorDims        = "vector_index.dimensions"
	keyVectorDSN         = "vector_index.dsn"
	keyVectorDataDir     = "vector_index.data_dir"
	keyChunkSize         = "chunker.chunk_size"
	keyChunkOverlap      = "chunker.overlap"
	keyIngestWorkers     = "ingestion.workers"
	keyIngestRetries     = "ingestion.max_retries"
	keyIngestBackoff     = "ingestion.initial_backoff"
	keyIngestRate        = "ingestion.rate_per_second"
	keyIngestBatch       = "ingestion.batch_size"
	keyIngestMaxFileSize = "ingestion.max_file_size"
	keyIngestDocsDir     = "ingestion.documents_dir"
	keyRetrievalTopK     = "retrieval.top_k"
	keyRetrievalScore    = "retrieval.score_threshold"
	keyRetrievalBudget   = "retrieval.token_budget"
	keyServerAddr        = "server.addr"
)

// Environment variables consulted when no API key is configured.
//
//nolint:gosec // G101: These are variable names, not actual credentials.
const (
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvOllamaHost   = "OLLAMA_HOST"
	EnvDatabaseURL  = "DATABASE_URL"
)

// DefaultOllamaURL is used for local providers with no base URL.
const DefaultOllamaURL = "http://localhost:11434"

// SettingsOption configures a SettingsService.
type SettingsOption func(*SettingsService)

// WithEnvLookup sets the function used to read environment variables.
func WithEnvLookup(getenv func(string) string) SettingsOption {
	return func(s *SettingsService) {
		if getenv != nil {
			s.getenv = getenv
		}
	}
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, opts ...SettingsOption) *SettingsService {
	s := &SettingsService{
		configStore: configStore,
		getenv:      os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, defaults.Embedding.Provider),
			Model:      s.configStore.GetString(keyEmbedModel),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.configStore.GetInt(keyEmbedDims),
		},
		LLM: domain.LLMSettings{
			Provider:    s.getProvider(keyLLMProvider, defaults.LLM.Provider),
			Model:       s.configStore.GetString(keyLLMModel),
			BaseURL:     s.configStore.GetString(keyLLMBaseURL),
			APIKey:      s.configStore.GetString(keyLLMAPIKey),
			Temperature: s.getFloat(keyLLMTemperature, defaults.LLM.Temperature),
		},
		VectorIndex: domain.VectorIndexSettings{
			Backend:    s.getBackend(defaults.VectorIndex.Backend),
			Dimensions: s.configStore.GetInt(keyVectorDims),
			DSN:        s.configStore.GetString(keyVectorDSN),
			DataDir:    s.configStore.GetString(keyVectorDataDir),
		},
		Chunker: domain.ChunkerSettings{
			ChunkSize: s.getInt(keyChunkSize, defaults.Chunker.ChunkSize),
			Overlap:   s.getInt(keyChunkOverlap, defaults.Chunker.Overlap),
		},
		Ingestion: domain.IngestionSettings{
			Workers:        s.getInt(keyIngestWorkers, defaults.Ingestion.Workers),
			MaxRetries:     s.getInt(keyIngestRetries, defaults.Ingestion.MaxRetries),
			InitialBackoff: s.getDuration(keyIngestBackoff, defaults.Ingestion.InitialBackoff),
			RatePerSecond:  s.getFloat(keyIngestRate, defaults.Ingestion.RatePerSecond),
			BatchSize:      s.getInt(keyIngestBatch, defaults.Ingestion.BatchSize),
			MaxFileSize:    int64(s.getInt(keyIngestMaxFileSize, int(defaults.Ingestion.MaxFileSize))),
			DocumentsDir:   s.getString(keyIngestDocsDir, defaults.Ingestion.DocumentsDir),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:           s.getInt(keyRetrievalTopK, defaults.Retrieval.TopK),
			ScoreThreshold: s.getFloat(keyRetrievalScore, defaults.Retrieval.ScoreThreshold),
			TokenBudget:    s.configStore.GetInt(keyRetrievalBudget),
		},
		Server: domain.ServerSettings{
			Addr: s.getString(keyServerAddr, defaults.Server.Addr),
		},
	}

	s.applyProviderDefaults(&settings.Embedding.Model, &settings.Embedding.BaseURL, &settings.Embedding.APIKey,
		settings.Embedding.Provider, domain.DefaultEmbeddingModels())
	s.applyProviderDefaults(&settings.LLM.Model, &settings.LLM.BaseURL, &settings.LLM.APIKey,
		settings.LLM.Provider, domain.DefaultLLMModels())

	// The index dimension follows the embedding model unless pinned.
	if settings.VectorIndex.Dimensions == 0 {
		settings.VectorIndex.Dimensions = settings.Embedding.EffectiveDimensions()
	}
	if settings.VectorIndex.Dimensions == 0 {
		settings.VectorIndex.Dimensions = defaults.VectorIndex.Dimensions
	}
	if settings.VectorIndex.DSN == "" {
		settings.VectorIndex.DSN = s.getenv(EnvDatabaseURL)
	}

	return settings, nil
}

// applyProviderDefaults fills the model, base URL and API key a provider
// needs when they are not configured.
func (s *SettingsService) applyProviderDefaults(
	model, baseURL, apiKey *string,
	provider domain.AIProvider,
	models map[domain.AIProvider]string,
) {
	if *model == "" {
		*model = models[provider]
	}
	switch provider {
	case domain.AIProviderOpenAI:
		if *apiKey == "" {
			*apiKey = s.getenv(EnvOpenAIAPIKey)
		}
	case domain.AIProviderOllama:
		if *baseURL == "" {
			*baseURL = s.getenv(EnvOllamaHost)
		}
		if *baseURL == "" {
			*baseURL = DefaultOllamaURL
		}
	}
}

// Save persists application settings. API keys taken from the environment
// are never written.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedDims, settings.Embedding.Dimensions},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMTemperature, settings.LLM.Temperature},
		{keyVectorBackend, settings.VectorIndex.Backend.String()},
		{keyVectorDims, settings.VectorIndex.Dimensions},
		{keyVectorDSN, settings.VectorIndex.DSN},
		{keyVectorDataDir, settings.VectorIndex.DataDir},
		{keyChunkSize, settings.Chunker.ChunkSize},
		{keyChunkOverlap, settings.Chunker.Overlap},
		{keyIngestWorkers, settings.Ingestion.Workers},
		{keyIngestRetries, settings.Ingestion.MaxRetries},
		{keyIngestBackoff, settings.Ingestion.InitialBackoff.String()},
		{keyIngestRate, settings.Ingestion.RatePerSecond},
		{keyIngestBatch, settings.Ingestion.BatchSize},
		{keyIngestMaxFileSize, settings.Ingestion.MaxFileSize},
		{keyIngestDocsDir, settings.Ingestion.DocumentsDir},
		{keyRetrievalTopK, settings.Retrieval.TopK},
		{keyRetrievalScore, settings.Retrieval.ScoreThreshold},
		{keyRetrievalBudget, settings.Retrieval.TokenBudget},
		{keyServerAddr, settings.Server.Addr},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if key := settings.Embedding.APIKey; key != "" && key != s.getenv(EnvOpenAIAPIKey) {
		if err := s.configStore.Set(keyEmbedAPIKey, key); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if key := settings.LLM.APIKey; key != "" && key != s.getenv(EnvOpenAIAPIKey) {
		if err := s.configStore.Set(keyLLMAPIKey, key); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = model
	if model == "" {
		settings.Embedding.Model = domain.DefaultEmbeddingModels()[provider]
	}
	settings.Embedding.APIKey = apiKey
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = DefaultOllamaURL
		}
	} else {
		// Cloud providers don't need a custom base URL
		settings.Embedding.BaseURL = ""
	}

	// Update vector dimensions based on model
	if d := settings.Embedding.EffectiveDimensions(); d > 0 {
		settings.VectorIndex.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the answer generator provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !slices.Contains(domain.AllLLMProviders(), provider) {
		return fmt.Errorf("%w: provider %s cannot generate answers", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = model
	if model == "" {
		settings.LLM.Model = domain.DefaultLLMModels()[provider]
	}
	settings.LLM.APIKey = apiKey
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = DefaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}

	return s.Save(settings)
}

// Validate checks that the settings can build a working pipeline.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("%w: set %s or %s", domain.ErrEmbeddingUnavailable, keyEmbedAPIKey, EnvOpenAIAPIKey))
	}
	if !settings.LLM.IsConfigured() {
		errs = append(errs, fmt.Errorf("%w: set %s or %s", domain.ErrLLMUnavailable, keyLLMAPIKey, EnvOpenAIAPIKey))
	}
	if d := settings.Embedding.EffectiveDimensions(); d > 0 && d != settings.VectorIndex.Dimensions {
		errs = append(errs, fmt.Errorf("%w: embedding model %s produces %d, index is configured for %d",
			domain.ErrDimensionMismatch, settings.Embedding.Model, d, settings.VectorIndex.Dimensions))
	}
	if settings.VectorIndex.Backend == domain.VectorBackendPGVector && settings.VectorIndex.DSN == "" {
		errs = append(errs, fmt.Errorf("%w: set %s or %s", domain.ErrVectorIndexUnavailable, keyVectorDSN, EnvDatabaseURL))
	}
	if err := settings.Chunker.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getDuration(key string, defaultVal time.Duration) time.Duration {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(val)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.VectorBackend) domain.VectorBackend {
	val := s.configStore.GetString(keyVectorBackend)
	if val == "" {
		return defaultVal
	}
	backend := domain.VectorBackend(val)
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
