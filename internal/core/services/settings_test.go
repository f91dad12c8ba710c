package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/askdocs/internal/core/domain"
)

func env(vars map[string]string) SettingsOption {
	return WithEnvLookup(func(key string) string { return vars[key] })
}

func TestSettingsService_GetDefaults(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore(), env(nil))

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, "text-embedding-3-small", settings.Embedding.Model)
	assert.Equal(t, "gpt-4o-mini", settings.LLM.Model)
	assert.Equal(t, domain.VectorBackendSQLite, settings.VectorIndex.Backend)
	assert.Equal(t, 1536, settings.VectorIndex.Dimensions)
	assert.Equal(t, 1000, settings.Chunker.ChunkSize)
	assert.Equal(t, 200, settings.Chunker.Overlap)
	assert.Equal(t, 4, settings.Retrieval.TopK)
	assert.InDelta(t, 0.3, settings.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, domain.DefaultInitialBackoff, settings.Ingestion.InitialBackoff)
	assert.Equal(t, int64(domain.DefaultMaxFileSize), settings.Ingestion.MaxFileSize)
	assert.Equal(t, "./documents", settings.Ingestion.DocumentsDir)
	assert.Equal(t, "127.0.0.1:3000", settings.Server.Addr)
	assert.Empty(t, settings.Embedding.APIKey)
}

func TestSettingsService_ReadsConfiguredValues(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"embedding.provider":        "ollama",
		"embedding.model":           "mxbai-embed-large",
		"llm.provider":              "ollama",
		"llm.temperature":           0.2,
		"vector_index.backend":      "pgvector",
		"chunker.chunk_size":        int64(500),
		"chunker.overlap":           50,
		"ingestion.initial_backoff": "2s",
		"ingestion.rate_per_second": 5,
		"retrieval.top_k":           8,
		"retrieval.score_threshold": 0.0,
		"retrieval.token_budget":    1200,
	})
	svc := NewSettingsService(store, env(map[string]string{
		EnvOllamaHost:  "http://gpu-box:11434",
		EnvDatabaseURL: "postgres://localhost/askdocs",
	}))

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "http://gpu-box:11434", settings.Embedding.BaseURL)
	assert.Equal(t, "llama3.2", settings.LLM.Model)
	assert.Equal(t, "http://gpu-box:11434", settings.LLM.BaseURL)
	assert.InDelta(t, 0.2, settings.LLM.Temperature, 1e-9)
	assert.Equal(t, 1024, settings.VectorIndex.Dimensions)
	assert.Equal(t, domain.VectorBackendPGVector, settings.VectorIndex.Backend)
	assert.Equal(t, "postgres://localhost/askdocs", settings.VectorIndex.DSN)
	assert.Equal(t, 500, settings.Chunker.ChunkSize)
	assert.Equal(t, 50, settings.Chunker.Overlap)
	assert.Equal(t, 2*time.Second, settings.Ingestion.InitialBackoff)
	assert.InDelta(t, 5.0, settings.Ingestion.RatePerSecond, 1e-9)
	assert.Equal(t, 8, settings.Retrieval.TopK)
	assert.Zero(t, settings.Retrieval.ScoreThreshold)
	assert.Equal(t, 1200, settings.Retrieval.TokenBudget)
}

func TestSettingsService_InvalidValuesFallBack(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{
		"embedding.provider":        "anthropic",
		"vector_index.backend":      "faiss",
		"ingestion.initial_backoff": "soon",
	})
	svc := NewSettingsService(store, env(nil))

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, domain.AIProviderOpenAI, settings.Embedding.Provider)
	assert.Equal(t, domain.VectorBackendSQLite, settings.VectorIndex.Backend)
	assert.Equal(t, domain.DefaultInitialBackoff, settings.Ingestion.InitialBackoff)
}

func TestSettingsService_APIKeyFromEnvironment(t *testing.T) {
	svc := NewSettingsService(memory.NewConfigStore(), env(map[string]string{EnvOpenAIAPIKey: "sk-env"}))

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, "sk-env", settings.Embedding.APIKey)
	assert.Equal(t, "sk-env", settings.LLM.APIKey)
	assert.True(t, settings.Embedding.IsConfigured())
}

func TestSettingsService_ConfiguredKeyWinsOverEnvironment(t *testing.T) {
	store := memory.NewConfigStore(map[string]any{"embedding.api_key": "sk-file"})
	svc := NewSettingsService(store, env(map[string]string{EnvOpenAIAPIKey: "sk-env"}))

	settings, err := svc.Get()
	require.NoError(t, err)

	assert.Equal(t, "sk-file", settings.Embedding.APIKey)
	assert.Equal(t, "sk-env", settings.LLM.APIKey)
}

func TestSettingsService_SaveRoundTrip(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store, env(map[string]string{EnvOpenAIAPIKey: "sk-env"}))

	settings, err := svc.Get()
	require.NoError(t, err)
	settings.Retrieval.TopK = 6
	settings.Retrieval.ScoreThreshold = 0.45
	settings.Ingestion.InitialBackoff = 750 * time.Millisecond
	settings.LLM.APIKey = "sk-llm"

	require.NoError(t, svc.Save(settings))

	assert.Equal(t, 6, store.GetInt("retrieval.top_k"))
	assert.Equal(t, "750ms", store.GetString("ingestion.initial_backoff"))
	assert.Equal(t, "sk-llm", store.GetString("llm.api_key"))
	_, saved := store.Get("embedding.api_key")
	assert.False(t, saved, "environment key must not be persisted")

	reloaded, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, 6, reloaded.Retrieval.TopK)
	assert.InDelta(t, 0.45, reloaded.Retrieval.ScoreThreshold, 1e-9)
	assert.Equal(t, 750*time.Millisecond, reloaded.Ingestion.InitialBackoff)
	assert.Equal(t, int64(domain.DefaultMaxFileSize), reloaded.Ingestion.MaxFileSize)
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store, env(nil))

	require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, DefaultOllamaURL, settings.Embedding.BaseURL)
	assert.Equal(t, 768, settings.VectorIndex.Dimensions)

	err = svc.SetEmbeddingProvider("anthropic", "", "key")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	store := memory.NewConfigStore()
	svc := NewSettingsService(store, env(nil))

	require.NoError(t, svc.SetLLMProvider(domain.AIProviderOpenAI, "gpt-4o", "sk-llm"))

	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
	assert.Equal(t, "gpt-4o", settings.LLM.Model)
	assert.Equal(t, "sk-llm", settings.LLM.APIKey)
	assert.Empty(t, settings.LLM.BaseURL)

	require.NoError(t, svc.SetLLMProvider(domain.AIProviderOllama, "", ""))
	settings, err = svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "llama3.2", settings.LLM.Model)
	assert.Equal(t, DefaultOllamaURL, settings.LLM.BaseURL)

	assert.ErrorIs(t, svc.SetLLMProvider("", "m", ""), domain.ErrInvalidInput)
}

func TestSettingsService_Validate(t *testing.T) {
	t.Run("valid local setup", func(t *testing.T) {
		store := memory.NewConfigStore(map[string]any{
			"embedding.provider": "ollama",
			"llm.provider":       "ollama",
		})
		svc := NewSettingsService(store, env(nil))

		assert.NoError(t, svc.Validate())
	})

	t.Run("reports every problem", func(t *testing.T) {
		store := memory.NewConfigStore(map[string]any{
			"vector_index.backend":    "pgvector",
			"vector_index.dimensions": 768,
			"chunker.chunk_size":      100,
			"chunker.overlap":         100,
		})
		svc := NewSettingsService(store, env(nil))

		err := svc.Validate()

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
		assert.ErrorIs(t, err, domain.ErrLLMUnavailable)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.ErrorIs(t, err, domain.ErrVectorIndexUnavailable)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
}
