package services

import (
	"context"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	dims    int
	embedFn func(ctx context.Context, text string) ([]float32, error)
	calls   atomic.Int32
}

func newMockEmbedder(dims int) *mockEmbeddingService {
	return &mockEmbeddingService{dims: dims}
}

func (m *mockEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	m.calls.Add(1)
	if m.embedFn != nil {
		return m.embedFn(ctx, text)
	}
	return constantVector(m.dims, float32(len(text))), nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return m.dims
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

func constantVector(dims int, v float32) []float32 {
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = v
	}
	return vec
}

type deleteCall struct {
	sourceID  string
	fromIndex int
}

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	mu          sync.Mutex
	dims        int
	records     map[string]domain.IndexRecord
	upsertCalls int
	upsertErr   func(call int) error
	deletes     []deleteCall
	results     []domain.RetrievalResult
	queryErr    error
	queryCalls  int
	describeErr error
}

func newMockIndex(dims int) *mockVectorIndex {
	return &mockVectorIndex{
		dims:    dims,
		records: make(map[string]domain.IndexRecord),
	}
}

func (m *mockVectorIndex) Upsert(_ context.Context, records []domain.IndexRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upsertCalls++
	if m.upsertErr != nil {
		if err := m.upsertErr(m.upsertCalls); err != nil {
			return err
		}
	}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return nil
}

func (m *mockVectorIndex) Query(_ context.Context, _ []float32, k int) ([]domain.RetrievalResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queryCalls++
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if k > len(m.results) {
		return m.results, nil
	}
	return m.results[:k], nil
}

func (m *mockVectorIndex) Describe(_ context.Context) (domain.IndexDescription, error) {
	if m.describeErr != nil {
		return domain.IndexDescription{}, m.describeErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return domain.IndexDescription{Dimension: m.dims, Metric: domain.MetricCosine, Count: len(m.records)}, nil
}

func (m *mockVectorIndex) DeleteSource(_ context.Context, sourceID string, fromIndex int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, deleteCall{sourceID: sourceID, fromIndex: fromIndex})
	for id, r := range m.records {
		if r.Metadata[domain.MetaSource] != sourceID {
			continue
		}
		if idx, _ := r.Metadata[domain.MetaChunkIndex].(int); idx >= fromIndex {
			delete(m.records, id)
		}
	}
	return nil
}

func (m *mockVectorIndex) Close() error {
	return nil
}

func (m *mockVectorIndex) sortedIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (m *mockVectorIndex) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// mockTokenStream implements driven.TokenStream over a fixed token list.
// When withhold is set it blocks after the listed tokens until ctx is done.
type mockTokenStream struct {
	ctx      context.Context
	tokens   []string
	err      error
	withhold bool
	pos      int
	current  string
	closed   atomic.Bool
}

func (s *mockTokenStream) Next() bool {
	if s.pos < len(s.tokens) {
		select {
		case <-s.ctx.Done():
			return false
		default:
		}
		s.current = s.tokens[s.pos]
		s.pos++
		return true
	}
	if s.withhold {
		<-s.ctx.Done()
	}
	return false
}

func (s *mockTokenStream) Token() string {
	return s.current
}

func (s *mockTokenStream) Err() error {
	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	return s.err
}

func (s *mockTokenStream) Close() error {
	s.closed.Store(true)
	return nil
}

// mockGenerator implements driven.Generator for testing.
type mockGenerator struct {
	tokens    []string
	streamErr error
	startErr  error
	withhold  bool

	mu      sync.Mutex
	calls   int
	prompts []string
	opts    []driven.GenerateOptions
	streams []*mockTokenStream
}

func (m *mockGenerator) StreamComplete(ctx context.Context, prompt string, opts driven.GenerateOptions) (driven.TokenStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.prompts = append(m.prompts, prompt)
	m.opts = append(m.opts, opts)
	if m.startErr != nil {
		return nil, m.startErr
	}
	s := &mockTokenStream{ctx: ctx, tokens: m.tokens, err: m.streamErr, withhold: m.withhold}
	m.streams = append(m.streams, s)
	return s, nil
}

func (m *mockGenerator) ModelName() string {
	return "mock-llm"
}

func (m *mockGenerator) Ping(_ context.Context) error {
	return nil
}

func (m *mockGenerator) Close() error {
	return nil
}

func (m *mockGenerator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// wordCounter implements driven.TokenCounter by counting whitespace-separated words.
type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// mockNormaliser implements driven.Normaliser for testing.
type mockNormaliser struct {
	mimeTypes []string
	err       error
}

func (m *mockNormaliser) SupportedMIMETypes() []string {
	return m.mimeTypes
}

func (m *mockNormaliser) Priority() int {
	return 50
}

func (m *mockNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &driven.NormaliseResult{
		Document: domain.Document{
			SourceID: raw.SourceID,
			URI:      raw.URI,
			Content:  string(raw.Content),
			Metadata: map[string]any{"title": raw.URI},
		},
	}, nil
}

// mockNormaliserRegistry implements driven.NormaliserRegistry by extension.
type mockNormaliserRegistry struct {
	byMIME map[string]driven.Normaliser
}

func newMockRegistry() *mockNormaliserRegistry {
	text := &mockNormaliser{mimeTypes: []string{"text/plain", "text/markdown"}}
	return &mockNormaliserRegistry{byMIME: map[string]driven.Normaliser{
		"text/plain":    text,
		"text/markdown": text,
	}}
}

func (m *mockNormaliserRegistry) Detect(name, declared string, _ []byte) string {
	if declared != "" {
		return declared
	}
	switch domain.FileTypeFromName(name) {
	case domain.FileTypeText:
		return "text/plain"
	case domain.FileTypeMarkdown:
		return "text/markdown"
	case domain.FileTypePDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

func (m *mockNormaliserRegistry) Register(n driven.Normaliser) {
	for _, mt := range n.SupportedMIMETypes() {
		m.byMIME[mt] = n
	}
}

func (m *mockNormaliserRegistry) Get(mimeType string) driven.Normaliser {
	return m.byMIME[mimeType]
}

func (m *mockNormaliserRegistry) SupportedMIMETypes() []string {
	out := make([]string, 0, len(m.byMIME))
	for mt := range m.byMIME {
		out = append(out, mt)
	}
	return out
}
