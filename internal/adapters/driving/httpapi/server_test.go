package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askdocs/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driving"
	"github.com/custodia-labs/askdocs/internal/core/services"
)

func newTestServer(t *testing.T, query *mockQueryService, ingestion *mockIngestionService) http.Handler {
	t.Helper()
	var ing driving.IngestionService
	if ingestion != nil {
		ing = ingestion
	}
	srv, err := NewServer(query, ing, Options{MaxUploadBytes: 64})
	require.NoError(t, err)
	return srv.Handler()
}

func postJSON(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodePayload(t *testing.T, rec *httptest.ResponseRecorder) domain.ErrorPayload {
	t.Helper()
	var payload domain.ErrorPayload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload
}

func TestNewServer_RequiresQueryService(t *testing.T) {
	_, err := NewServer(nil, nil, Options{})
	assert.ErrorIs(t, err, ErrMissingQueryService)
}

func TestQueryRAG_StreamsTokens(t *testing.T) {
	query := &mockQueryService{tokens: []string{"The", " sky", " is", " blue"}}
	h := newTestServer(t, query, nil)

	rec := postJSON(t, h, "/api/query-rag",
		`{"question":"why is the sky blue?","label":"sky","topK":2,"threshold":0.5,"embedding":[0.1,0.2]}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "stream-1", rec.Header().Get("X-Stream-Id"))
	assert.Equal(t, "The sky is blue", rec.Body.String())
	assert.True(t, rec.Flushed)
	assert.Equal(t, "completed", rec.Result().Trailer.Get(StreamStateTrailer))

	assert.Equal(t, "why is the sky blue?", query.lastReq.Question)
	assert.Equal(t, "sky", query.lastReq.Label)
	assert.Equal(t, 2, query.lastReq.TopK)
	require.NotNil(t, query.lastReq.Threshold)
	assert.InDelta(t, 0.5, *query.lastReq.Threshold, 1e-9)
	assert.Equal(t, []float32{0.1, 0.2}, query.lastReq.QueryVector)
}

func TestQueryRAG_ErrorsBeforeStreaming(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		body       string
		wantStatus int
		wantKind   string
	}{
		{"malformed body", nil, `{"question":`, http.StatusBadRequest, domain.KindInvalidRequest},
		{"unknown field", nil, `{"query":"x"}`, http.StatusBadRequest, domain.KindInvalidRequest},
		{"invalid input", domain.ErrInvalidInput, `{"question":""}`, http.StatusBadRequest, domain.KindInvalidRequest},
		{"dimension mismatch", &domain.DimensionMismatchError{Expected: 3, Actual: 2}, `{"question":"q"}`,
			http.StatusUnprocessableEntity, domain.KindDimensionMismatch},
		{"embedding failure", fmt.Errorf("%w: quota", domain.ErrEmbeddingFailure), `{"question":"q"}`,
			http.StatusBadGateway, domain.KindEmbeddingFailure},
		{"index unavailable", domain.ErrVectorIndexUnavailable, `{"question":"q"}`,
			http.StatusServiceUnavailable, domain.KindUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, &mockQueryService{err: tt.err}, nil)

			rec := postJSON(t, h, "/api/query-rag", tt.body)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			payload := decodePayload(t, rec)
			assert.Equal(t, tt.wantKind, payload.ErrorKind)
			assert.NotEmpty(t, payload.Message)
		})
	}
}

// newPipelineServer wires the handler to a real query service over a
// memory index holding one sky record.
func newPipelineServer(t *testing.T, gen *scriptedGenerator) http.Handler {
	t.Helper()
	index, err := memory.NewVectorIndex(3)
	require.NoError(t, err)
	require.NoError(t, index.Upsert(context.Background(), []domain.IndexRecord{{
		ID:     domain.RecordID("sky.md", 0),
		Vector: []float32{1, 0, 0},
		Text:   "Rayleigh scattering makes the sky look blue.",
	}}))

	embedder := &fixedEmbedder{vector: []float32{1, 0, 0}}
	retriever := services.NewRetriever(index, nil, services.RetrieverConfig{Dimension: 3})
	answers := services.NewAnswerStreamer(gen, nil, services.AnswerConfig{})
	query := services.NewQueryService(embedder, index, retriever, answers, services.QueryConfig{TopK: 2, Threshold: 0.3})

	srv, err := NewServer(query, nil, Options{})
	require.NoError(t, err)
	return srv.Handler()
}

func TestQueryRAG_FailureMidStreamSeparatesDiagnostic(t *testing.T) {
	h := newPipelineServer(t, &scriptedGenerator{
		tokens: []string{"The", " sky"},
		err:    errors.New("connection reset"),
	})

	rec := postJSON(t, h, "/api/query-rag", `{"question":"why is the sky blue?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "The sky\n\n"+ErrorMarker+services.GenerationFailedMessage, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.Equal(t, "failed", rec.Result().Trailer.Get(StreamStateTrailer))
}

func TestQueryRAG_PipelineCompletes(t *testing.T) {
	h := newPipelineServer(t, &scriptedGenerator{tokens: []string{"The", " sky", " is", " blue"}})

	rec := postJSON(t, h, "/api/query-rag", `{"question":"why is the sky blue?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "The sky is blue", rec.Body.String())
	assert.Equal(t, "completed", rec.Result().Trailer.Get(StreamStateTrailer))
}

func TestFormatToken(t *testing.T) {
	tests := []struct {
		name      string
		tok       domain.Token
		wroteText bool
		want      string
	}{
		{"text", domain.Token{Kind: domain.TokenText, Text: " sky"}, true, " sky"},
		{"notice alone", domain.Token{Kind: domain.TokenNotice, Text: "nothing found"}, false, "nothing found"},
		{"notice after text", domain.Token{Kind: domain.TokenNotice, Text: "nothing found"}, true, "\n\nnothing found"},
		{"error alone", domain.Token{Kind: domain.TokenError, Text: "failed"}, false, "[error] failed"},
		{"error after text", domain.Token{Kind: domain.TokenError, Text: "failed"}, true, "\n\n[error] failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatToken(tt.tok, tt.wroteText))
		})
	}
}

func TestAsk_Direct(t *testing.T) {
	query := &mockQueryService{tokens: []string{"Paris"}}
	h := newTestServer(t, query, nil)

	rec := postJSON(t, h, "/api/ask", `{"question":"capital of France?"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Paris", rec.Body.String())
	assert.Equal(t, "capital of France?", query.directQ)
}

func TestGenerateEmbedding(t *testing.T) {
	query := &mockQueryService{vector: []float32{0.5, -0.25}}
	h := newTestServer(t, query, nil)

	rec := postJSON(t, h, "/api/generate-embedding", `{"text":"hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp EmbeddingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []float32{0.5, -0.25}, resp.Embedding)
	assert.Equal(t, "hello", query.lastText)
}

func TestGenerateEmbedding_Failure(t *testing.T) {
	query := &mockQueryService{err: fmt.Errorf("%w: 500 from provider", domain.ErrEmbeddingFailure)}
	h := newTestServer(t, query, nil)

	rec := postJSON(t, h, "/api/generate-embedding", `{"text":"hello"}`)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, domain.KindEmbeddingFailure, decodePayload(t, rec).ErrorKind)
}

func multipartUpload(t *testing.T, fileName, formName string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	if formName != "" {
		require.NoError(t, mw.WriteField("fileName", formName))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload-knowledge", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadKnowledge(t *testing.T) {
	ingestion := &mockIngestionService{}
	h := newTestServer(t, &mockQueryService{}, ingestion)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, multipartUpload(t, "upload.bin", "notes.md", []byte("# Notes\n\nhello")))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp UploadResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "notes.md", resp.SourceID)
	assert.Equal(t, 3, resp.ChunksCreated)
	assert.Equal(t, 14, resp.BytesProcessed)
	assert.Equal(t, int64(1500), resp.DurationMS)

	require.Len(t, ingestion.uploads, 1)
	assert.Equal(t, "notes.md", ingestion.uploads[0].Name)
	assert.Equal(t, "# Notes\n\nhello", string(ingestion.uploads[0].Content))
}

func TestUploadKnowledge_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		h := newTestServer(t, &mockQueryService{}, &mockIngestionService{})
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("fileName", "x.txt"))
		require.NoError(t, mw.Close())
		req := httptest.NewRequest(http.MethodPost, "/api/upload-knowledge", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unsupported type", func(t *testing.T) {
		ingestion := &mockIngestionService{err: fmt.Errorf("%w: image/png", domain.ErrUnsupportedType)}
		h := newTestServer(t, &mockQueryService{}, ingestion)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartUpload(t, "cat.png", "", []byte{0x89, 'P', 'N', 'G'}))

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, domain.KindUnsupportedType, decodePayload(t, rec).ErrorKind)
	})

	t.Run("file too large", func(t *testing.T) {
		ingestion := &mockIngestionService{err: domain.ErrFileTooLarge}
		h := newTestServer(t, &mockQueryService{}, ingestion)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartUpload(t, "big.txt", "", bytes.Repeat([]byte("a"), 128)))

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("ingestion disabled", func(t *testing.T) {
		h := newTestServer(t, &mockQueryService{}, nil)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, multipartUpload(t, "a.txt", "", []byte("a")))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestDescribeAndHealth(t *testing.T) {
	query := &mockQueryService{desc: domain.IndexDescription{Dimension: 1536, Metric: domain.MetricCosine, Count: 42}}
	h := newTestServer(t, query, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/index", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var desc IndexResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &desc))
	assert.Equal(t, IndexResponse{Dimension: 1536, Metric: "cosine", Count: 42}, desc)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRoutes_MethodNotAllowed(t *testing.T) {
	h := newTestServer(t, &mockQueryService{}, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/query-rag", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMount_ServesBesideAPI(t *testing.T) {
	server, err := NewServer(&mockQueryService{}, nil, Options{})
	require.NoError(t, err)
	server.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/mcp", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusUnprocessableEntity, StatusFor(domain.ErrEmptyContent))
	assert.Equal(t, http.StatusBadGateway, StatusFor(domain.ErrIndexWriteFailure))
	assert.Equal(t, http.StatusBadGateway, StatusFor(domain.ErrGenerationFailure))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("boom")))
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	srv, err := NewServer(&mockQueryService{}, nil, Options{ShutdownTimeout: time.Second})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}
