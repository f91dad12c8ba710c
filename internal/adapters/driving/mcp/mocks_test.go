package mcp

import (
	"context"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// streamOf returns a stream that delivers texts and then finishes with
// state and err.
func streamOf(state domain.StreamState, err error, texts ...string) *domain.Stream {
	stream, w := domain.NewStream("test-stream", nil)
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
	desc      domain.IndexDescription

	lastReq    domain.QueryRequest
	directCall string
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) (*domain.Stream, error) {
	m.lastReq = req
	if m.err != nil {
		return nil, m.err
	}
	return m.stream(), nil
}

func (m *mockQueryService) AskDirect(_ context.Context, question string) (*domain.Stream, error) {
	m.directCall = question
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

func (m *mockQueryService) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2}, m.err
}

func (m *mockQueryService) Describe(_ context.Context) (domain.IndexDescription, error) {
	return m.desc, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	err      error
	requests []domain.IngestRequest
	paths    [][2]string
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestReport, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestReport{SourceID: req.SourceID, ChunksCreated: 2, BytesProcessed: len(req.Content)}, nil
}

func (m *mockIngestionService) IngestFile(_ context.Context, f domain.FileUpload) (*domain.IngestReport, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestReport{SourceID: f.Name, ChunksCreated: 1, BytesProcessed: len(f.Content)}, nil
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, dir string) (*domain.DirectoryReport, error) {
	return &domain.DirectoryReport{Dir: dir}, m.err
}

func (m *mockIngestionService) IngestPath(_ context.Context, path, sourceID string) (*domain.IngestReport, error) {
	m.paths = append(m.paths, [2]string{path, sourceID})
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestReport{SourceID: sourceID, ChunksCreated: 3, BytesProcessed: 100}, nil
}

func (m *mockIngestionService) Remove(_ context.Context, _ string) error {
	return m.err
}
