package httpapi

import (
	"context"
	"time"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

func streamOf(state domain.StreamState, err error, texts ...string) *domain.Stream {
	stream, w := domain.NewStream("stream-1", nil)
	go func() {
		w.Start()
		for _, text := range texts {
			w.Send(context.Background(), domain.Token{Kind: domain.TokenText, Text: text})
		}
		w.Finish(state, err)
	}()
	return stream
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	tokens    []string
	streamErr error
	err       error
	vector    []float32
	desc      domain.IndexDescription

	lastReq  domain.QueryRequest
	lastText string
	directQ  string
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) (*domain.Stream, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.stream(), nil
}

func (m *mockQueryService) AskDirect(_ context.Context, question string) (*domain.Stream, error) {
	m.directQ = question
	if m.err != nil {
		return nil, m.err
	}
	return m.stream(), nil
}

func (m *mockQueryService) stream() *domain.Stream {
	if m.streamErr != nil {
		return streamOf(domain.StreamFailed, m.streamErr, m.tokens...)
	}
	return streamOf(domain.StreamCompleted, nil, m.tokens...)
}

func (m *mockQueryService) Retrieve(_ context.Context, _ domain.QueryRequest) (domain.ContextWindow, error) {
	return domain.ContextWindow{}, m.err
}

func (m *mockQueryService) Embed(_ context.Context, text string) ([]float32, error) {
	m.lastText = text
	if m.err != nil {
		return nil, m.err
	}
	return m.vector, nil
}

func (m *mockQueryService) Describe(_ context.Context) (domain.IndexDescription, error) {
	return m.desc, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	err     error
	uploads []domain.FileUpload
}

func (m *mockIngestionService) Ingest(_ context.Context, _ domain.IngestRequest) (*domain.IngestReport, error) {
	return nil, m.err
}

func (m *mockIngestionService) IngestFile(_ context.Context, upload domain.FileUpload) (*domain.IngestReport, error) {
	m.uploads = append(m.uploads, upload)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestReport{
		SourceID:       upload.Name,
		ChunksCreated:  3,
		BytesProcessed: len(upload.Content),
		Duration:       1500 * time.Millisecond,
	}, nil
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, dir string) (*domain.DirectoryReport, error) {
	return &domain.DirectoryReport{Dir: dir}, m.err
}

func (m *mockIngestionService) IngestPath(_ context.Context, _, _ string) (*domain.IngestReport, error) {
	return nil, m.err
}

func (m *mockIngestionService) Remove(_ context.Context, _ string) error {
	return m.err
}

// fixedEmbedder implements driven.EmbeddingService with one fixed vector.
type fixedEmbedder struct {
	vector []float32
}

func (e *fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return e.vector, nil
}

func (e *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i], _ = e.Embed(ctx, texts[i])
	}
	return out, nil
}

func (e *fixedEmbedder) Dimensions() int { return len(e.vector) }
func (e *fixedEmbedder) ModelName() string { return "fixed" }
func (e *fixedEmbedder) Ping(context.Context) error { return nil }
func (e *fixedEmbedder) Close() error { return nil }

// scriptedGenerator implements driven.Generator, yielding tokens and then
// ending with err.
type scriptedGenerator struct {
	tokens []string
	err    error
}

func (g *scriptedGenerator) StreamComplete(_ context.Context, _ string, _ driven.GenerateOptions) (driven.TokenStream, error) {
	return &scriptedStream{tokens: g.tokens, err: g.err, pos: -1}, nil
}

func (g *scriptedGenerator) ModelName() string { return "scripted" }
func (g *scriptedGenerator) Ping(context.Context) error { return nil }
func (g *scriptedGenerator) Close() error { return nil }

type scriptedStream struct {
	tokens []string
	err    error
	pos    int
}

func (s *scriptedStream) Next() bool {
	if s.pos+1 >= len(s.tokens) {
		return false
	}
	s.pos++
	return true
}

func (s *scriptedStream) Token() string { return s.tokens[s.pos] }
func (s *scriptedStream) Err() error { return s.err }
func (s *scriptedStream) Close() error { return nil }
