package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// StatusFor maps an error onto an HTTP status code.
func StatusFor(err error) int {
	switch domain.ErrorKind(err) {
	case domain.KindInvalidRequest:
		return http.StatusBadRequest
	case domain.KindEmptyContent, domain.KindDimensionMismatch:
		return http.StatusUnprocessableEntity
	case domain.KindUnsupportedType:
		return http.StatusUnsupportedMediaType
	case domain.KindFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case domain.KindEmbeddingFailure, domain.KindIndexWriteFailure,
		domain.KindIndexQueryFailure, domain.KindGenerationFailure:
		return http.StatusBadGateway
	case domain.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	} else {
		logger.Debug("request rejected: %v", err)
	}
	writeJSON(w, status, domain.NewErrorPayload(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("write response: %v", err)
	}
}
