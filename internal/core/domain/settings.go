package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or generation.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// VectorBackend identifies the vector index implementation.
type VectorBackend string

// Available vector index backends.
const (
	// VectorBackendMemory keeps records in process memory. Nothing is persisted.
	VectorBackendMemory VectorBackend = "memory"

	// VectorBackendSQLite persists records in a local SQLite database.
	VectorBackendSQLite VectorBackend = "sqlite"

	// VectorBackendPGVector stores records in Postgres with the pgvector extension.
	VectorBackendPGVector VectorBackend = "pgvector"
)

// IsValid returns true if the backend is recognised.
func (b VectorBackend) IsValid() bool {
	switch b {
	case VectorBackendMemory, VectorBackendSQLite, VectorBackendPGVector:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b VectorBackend) String() string {
	return string(b)
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Dimensions overrides the model's known output size when positive.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// EffectiveDimensions returns the configured or known output size of the model.
func (e EmbeddingSettings) EffectiveDimensions() int {
	if e.Dimensions > 0 {
		return e.Dimensions
	}
	return EmbeddingDimensions()[e.Model]
}

// LLMSettings holds generator provider configuration.
type LLMSettings struct {
	// Provider is the generator service provider.
	Provider AIProvider

	// Model is the chat model name.
	Model string

	// BaseURL is the API endpoint (for Ollama or compatible servers).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Temperature is used for grounded answers.
	Temperature float64
}

// IsConfigured returns true if the generator provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// VectorIndexSettings holds vector index configuration.
type VectorIndexSettings struct {
	// Backend selects the implementation.
	Backend VectorBackend

	// Dimensions is the embedding vector size every record must have.
	Dimensions int

	// DSN is the Postgres connection string for the pgvector backend.
	DSN string

	// DataDir is where the SQLite backend keeps its database.
	DataDir string
}

// ChunkerSettings holds text splitting configuration.
type ChunkerSettings struct {
	// ChunkSize is the maximum chunk length in characters.
	ChunkSize int

	// Overlap is the number of characters repeated between adjacent chunks.
	Overlap int
}

// Validate checks 0 <= Overlap < ChunkSize.
func (c ChunkerSettings) Validate() error {
	if c.ChunkSize <= 0 || c.Overlap < 0 || c.Overlap >= c.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be below chunk size %d",
			ErrInvalidInput, c.Overlap, c.ChunkSize)
	}
	return nil
}

// IngestionSettings holds ingestion pipeline configuration.
type IngestionSettings struct {
	// Workers bounds concurrent embedding calls per document.
	Workers int

	// MaxRetries bounds retries of a failed embedding or index write.
	MaxRetries int

	// InitialBackoff is the first retry delay; later delays grow exponentially.
	InitialBackoff time.Duration

	// RatePerSecond caps embedding calls per second. Zero disables limiting.
	RatePerSecond float64

	// BatchSize is the number of records per upsert call.
	BatchSize int

	// MaxFileSize caps uploaded file size in bytes.
	MaxFileSize int64

	// DocumentsDir is the default folder for directory ingestion.
	DocumentsDir string
}

// RetrievalSettings holds query-time retrieval configuration.
type RetrievalSettings struct {
	// TopK is the number of nearest neighbours requested.
	TopK int

	// ScoreThreshold drops results scoring below it.
	ScoreThreshold float64

	// TokenBudget caps the rendered context in tokens. Zero disables the cap.
	TokenBudget int
}

// ServerSettings holds HTTP server configuration.
type ServerSettings struct {
	// Addr is the listen address.
	Addr string
}

// AppSettings holds all application settings.
type AppSettings struct {
	Embedding   EmbeddingSettings
	LLM         LLMSettings
	VectorIndex VectorIndexSettings
	Chunker     ChunkerSettings
	Ingestion   IngestionSettings
	Retrieval   RetrievalSettings
	Server      ServerSettings
}

// Defaults shared by the settings service and component constructors.
const (
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 200
	DefaultTopK           = 4
	DefaultScoreThreshold = 0.3
	DefaultWorkers        = 4
	DefaultMaxRetries     = 3
	DefaultInitialBackoff = 500 * time.Millisecond
	DefaultBatchSize      = 100
	DefaultMaxFileSize    = 10 * 1024 * 1024
	DefaultDocumentsDir   = "./documents"
	DefaultServerAddr     = "127.0.0.1:3000"
)

// DefaultAppSettings returns settings with sensible defaults.
// Providers are left unconfigured until an API key or base URL is supplied.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOpenAI,
			Model:    "text-embedding-3-small",
		},
		LLM: LLMSettings{
			Provider:    AIProviderOpenAI,
			Model:       "gpt-4o-mini",
			Temperature: 0,
		},
		VectorIndex: VectorIndexSettings{
			Backend:    VectorBackendSQLite,
			Dimensions: 1536,
		},
		Chunker: ChunkerSettings{
			ChunkSize: DefaultChunkSize,
			Overlap:   DefaultChunkOverlap,
		},
		Ingestion: IngestionSettings{
			Workers:        DefaultWorkers,
			MaxRetries:     DefaultMaxRetries,
			InitialBackoff: DefaultInitialBackoff,
			BatchSize:      DefaultBatchSize,
			MaxFileSize:    DefaultMaxFileSize,
			DocumentsDir:   DefaultDocumentsDir,
		},
		Retrieval: RetrievalSettings{
			TopK:           DefaultTopK,
			ScoreThreshold: DefaultScoreThreshold,
		},
		Server: ServerSettings{
			Addr: DefaultServerAddr,
		},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that can generate answers.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each generator provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "llama3.2",
		AIProviderOpenAI: "gpt-4o-mini",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
