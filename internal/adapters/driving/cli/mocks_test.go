package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

func streamOf(state domain.StreamState, err error, tokens ...domain.Token) *domain.Stream {
	stream, w := domain.NewStream("cli-stream", nil)
	go func() {
		w.Start()
		for _, tok := range tokens {
			w.Send(context.Background(), tok)
		}
		w.Finish(state, err)
	}()
	return stream
}

func textTokens(texts ...string) []domain.Token {
	out := make([]domain.Token, len(texts))
	for i, text := range texts {
		out[i] = domain.Token{Kind: domain.TokenText, Text: text}
	}
	return out
}

// mockQueryService is a mock implementation of driving.QueryService.
type mockQueryService struct {
	tokens    []domain.Token
	state     domain.StreamState
	streamErr error
	err       error
	window    domain.ContextWindow
	desc      domain.IndexDescription

	askReqs     []domain.QueryRequest
	directCalls []string
	retrieves   []domain.QueryRequest
}

func (m *mockQueryService) stream() *domain.Stream {
	state := m.state
	if state == domain.StreamPending {
		state = domain.StreamCompleted
	}
	return streamOf(state, m.streamErr, m.tokens...)
}

func (m *mockQueryService) Ask(_ context.Context, req domain.QueryRequest) (*domain.Stream, error) {
	m.askReqs = append(m.askReqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return m.stream(), nil
}

func (m *mockQueryService) AskDirect(_ context.Context, question string) (*domain.Stream, error) {
	m.directCalls = append(m.directCalls, question)
	if m.err != nil {
		return nil, m.err
	}
	return m.stream(), nil
}

func (m *mockQueryService) Retrieve(_ context.Context, req domain.QueryRequest) (domain.ContextWindow, error) {
	m.retrieves = append(m.retrieves, req)
	return m.window, m.err
}

func (m *mockQueryService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []float32{0.25, -0.5, 1}, nil
}

func (m *mockQueryService) Describe(_ context.Context) (domain.IndexDescription, error) {
	return m.desc, m.err
}

// mockIngestionService is a mock implementation of driving.IngestionService.
type mockIngestionService struct {
	err       error
	dirReport *domain.DirectoryReport

	paths   [][2]string
	dirs    []string
	removed []string
}

func (m *mockIngestionService) Ingest(_ context.Context, req domain.IngestRequest) (*domain.IngestReport, error) {
	return &domain.IngestReport{SourceID: req.SourceID}, m.err
}

func (m *mockIngestionService) IngestFile(_ context.Context, f domain.FileUpload) (*domain.IngestReport, error) {
	return &domain.IngestReport{SourceID: f.Name}, m.err
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, dir string) (*domain.DirectoryReport, error) {
	m.dirs = append(m.dirs, dir)
	if m.err != nil {
		return nil, m.err
	}
	if m.dirReport != nil {
		return m.dirReport, nil
	}
	return &domain.DirectoryReport{Dir: dir}, nil
}

func (m *mockIngestionService) IngestPath(_ context.Context, path, sourceID string) (*domain.IngestReport, error) {
	m.paths = append(m.paths, [2]string{path, sourceID})
	if m.err != nil {
		return nil, m.err
	}
	return &domain.IngestReport{
		SourceID:       sourceID,
		ChunksCreated:  2,
		BytesProcessed: 120,
		Duration:       15 * time.Millisecond,
	}, nil
}

func (m *mockIngestionService) Remove(_ context.Context, sourceID string) error {
	m.removed = append(m.removed, sourceID)
	return m.err
}

// mockSettingsService is a mock implementation of driving.SettingsService.
type mockSettingsService struct {
	settings    domain.AppSettings
	validateErr error

	embedding [3]string
	llm       [3]string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.embedding = [3]string{string(provider), model, apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.llm = [3]string{string(provider), model, apiKey}
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// resetFlags restores every flag of cmd and its children to its default.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}
