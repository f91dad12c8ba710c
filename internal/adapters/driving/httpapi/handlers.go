package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// StreamStateTrailer is the trailer carrying the final state of a streamed
// answer: completed, failed or cancelled.
const StreamStateTrailer = "X-Stream-State"

// ErrorMarker prefixes the diagnostic written when generation fails after
// the response has started.
const ErrorMarker = "[error] "

// QueryRequest is the body of POST /api/query-rag.
type QueryRequest struct {
	Question  string    `json:"question"`
	Embedding []float32 `json:"embedding,omitempty"`
	Label     string    `json:"label,omitempty"`
	TopK      int       `json:"topK,omitempty"`
	Threshold *float64  `json:"threshold,omitempty"`
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	Question string `json:"question"`
}

// EmbeddingRequest is the body of POST /api/generate-embedding.
type EmbeddingRequest struct {
	Text string `json:"text"`
}

// EmbeddingResponse is the reply of POST /api/generate-embedding.
type EmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// UploadResponse is the reply of POST /api/upload-knowledge.
type UploadResponse struct {
	SourceID       string `json:"sourceId"`
	ChunksCreated  int    `json:"chunksCreated"`
	BytesProcessed int    `json:"bytesProcessed"`
	DurationMS     int64  `json:"durationMs"`
}

// IndexResponse is the reply of GET /api/index.
type IndexResponse struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Count     int    `json:"count"`
}

func (s *Server) handleQueryRAG(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	stream, err := s.query.Ask(r.Context(), domain.QueryRequest{
		Question:    req.Question,
		QueryVector: req.Embedding,
		Label:       req.Label,
		TopK:        req.TopK,
		Threshold:   req.Threshold,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	streamTokens(w, stream)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	stream, err := s.query.AskDirect(r.Context(), req.Question)
	if err != nil {
		writeError(w, err)
		return
	}
	streamTokens(w, stream)
}

// streamTokens writes each token as it arrives and flushes it. When the
// client goes away the stream is cancelled and drained.
func streamTokens(w http.ResponseWriter, stream *domain.Stream) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("X-Stream-Id", stream.ID())
	w.Header().Set("Trailer", StreamStateTrailer)
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	broken := false
	wroteText := false
	for tok := range stream.Tokens() {
		if broken {
			continue
		}
		text := formatToken(tok, wroteText)
		wroteText = tok.Kind == domain.TokenText
		if _, err := io.WriteString(w, text); err != nil {
			broken = true
			stream.Cancel()
			continue
		}
		if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
			broken = true
			stream.Cancel()
		}
	}

	state := stream.Wait()
	w.Header().Set(StreamStateTrailer, state.String())
	session := stream.Session()
	if err := stream.Err(); err != nil {
		logger.Warn("stream %s %s after %d tokens: %v", session.ID, state, session.TokensEmitted, err)
		return
	}
	logger.Debug("stream %s %s after %d tokens", session.ID, state, session.TokensEmitted)
}

// formatToken renders tok for the response body. Notices and the error
// diagnostic are set apart from answer text already written, and the
// diagnostic carries ErrorMarker.
func formatToken(tok domain.Token, wroteText bool) string {
	text := tok.Text
	if tok.Kind == domain.TokenError {
		text = ErrorMarker + text
	}
	if tok.Kind != domain.TokenText && wroteText {
		text = "\n\n" + text
	}
	return text
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.ingestion == nil {
		writeError(w, fmt.Errorf("%w: ingestion is not configured", domain.ErrVectorIndexUnavailable))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, fmt.Errorf("%w: limit is %d bytes", domain.ErrFileTooLarge, s.opts.MaxUploadBytes))
			return
		}
		writeError(w, fmt.Errorf("%w: multipart form: %v", domain.ErrInvalidInput, err))
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, fmt.Errorf("%w: missing file field", domain.ErrInvalidInput))
		return
	}
	defer file.Close()

	content, err := io.ReadAll(io.LimitReader(file, s.opts.MaxUploadBytes+1))
	if err != nil {
		writeError(w, fmt.Errorf("%w: read upload: %v", domain.ErrInvalidInput, err))
		return
	}

	name := strings.TrimSpace(r.FormValue("fileName"))
	if name == "" {
		name = header.Filename
	}

	report, err := s.ingestion.IngestFile(r.Context(), domain.FileUpload{
		Name:     name,
		MIMEType: header.Header.Get("Content-Type"),
		Content:  content,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, UploadResponse{
		SourceID:       report.SourceID,
		ChunksCreated:  report.ChunksCreated,
		BytesProcessed: report.BytesProcessed,
		DurationMS:     report.Duration.Milliseconds(),
	})
}

func (s *Server) handleEmbedding(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	vec, err := s.query.Embed(r.Context(), req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EmbeddingResponse{Embedding: vec})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	desc, err := s.query.Describe(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, IndexResponse{
		Dimension: desc.Dimension,
		Metric:    desc.Metric.String(),
		Count:     desc.Count,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
