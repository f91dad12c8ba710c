package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// Adapters wrap collaborator errors into these so callers can branch with errors.Is.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates a file type no normaliser handles.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrFileTooLarge indicates an upload exceeds the configured size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrEmptyContent indicates there is no text to ingest.
	ErrEmptyContent = errors.New("empty content")

	// ErrDimensionMismatch indicates a vector does not match the index dimension.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrEmbeddingFailure indicates the embedding provider failed.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrIndexWriteFailure indicates the vector index rejected a write.
	ErrIndexWriteFailure = errors.New("index write failure")

	// ErrIndexQueryFailure indicates the vector index failed to answer a query.
	ErrIndexQueryFailure = errors.New("index query failure")

	// ErrGenerationFailure indicates the text generator failed.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the generator is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")
)

// DimensionMismatchError reports a vector whose length differs from the
// dimension the index was configured with.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is matches ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// EmbeddingError reports a chunk whose embedding failed after all retries.
type EmbeddingError struct {
	ChunkIndex int
	Attempts   int
	Err        error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding failure: chunk %d after %d attempts: %v", e.ChunkIndex, e.Attempts, e.Err)
}

// Is matches ErrEmbeddingFailure.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbeddingFailure
}

// Unwrap returns the last underlying error.
func (e *EmbeddingError) Unwrap() error {
	return e.Err
}

// Error kinds reported at the request boundary.
const (
	KindEmptyContent      = "empty_content"
	KindDimensionMismatch = "dimension_mismatch"
	KindEmbeddingFailure  = "embedding_failure"
	KindIndexWriteFailure = "index_write_failure"
	KindIndexQueryFailure = "index_query_failure"
	KindGenerationFailure = "generation_failure"
	KindInvalidRequest    = "invalid_request"
	KindUnsupportedType   = "unsupported_type"
	KindFileTooLarge      = "file_too_large"
	KindUnavailable       = "unavailable"
	KindInternal          = "internal"
)

// ErrorKind maps err onto a stable kind string for structured responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyContent):
		return KindEmptyContent
	case errors.Is(err, ErrDimensionMismatch):
		return KindDimensionMismatch
	case errors.Is(err, ErrEmbeddingFailure):
		return KindEmbeddingFailure
	case errors.Is(err, ErrIndexWriteFailure):
		return KindIndexWriteFailure
	case errors.Is(err, ErrIndexQueryFailure):
		return KindIndexQueryFailure
	case errors.Is(err, ErrGenerationFailure):
		return KindGenerationFailure
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidRequest
	case errors.Is(err, ErrUnsupportedType):
		return KindUnsupportedType
	case errors.Is(err, ErrFileTooLarge):
		return KindFileTooLarge
	case errors.Is(err, ErrEmbeddingUnavailable),
		errors.Is(err, ErrLLMUnavailable),
		errors.Is(err, ErrVectorIndexUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// ErrorPayload is the structured error returned when a request is
// rejected before streaming starts.
type ErrorPayload struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

// NewErrorPayload builds the structured payload for err.
func NewErrorPayload(err error) ErrorPayload {
	return ErrorPayload{
		ErrorKind: ErrorKind(err),
		Message:   err.Error(),
	}
}
