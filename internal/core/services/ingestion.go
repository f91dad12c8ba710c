package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/core/ports/driving"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// Ensure IngestionService implements the interface.
var _ driving.IngestionService = (*IngestionService)(nil)

// IngestionConfig configures the ingestion pipeline.
type IngestionConfig struct {
	// Workers bounds concurrent embedding calls per document.
	Workers int

	// Retry bounds retries of embedding calls and index writes.
	Retry RetryPolicy

	// RatePerSecond caps embedding calls per second. Zero disables limiting.
	RatePerSecond float64

	// BatchSize is the number of records per upsert.
	BatchSize int

	// MaxFileSize caps uploads in bytes. Zero disables the cap.
	MaxFileSize int64

	// DocumentsDir is used when IngestDirectory is called with an empty dir.
	DocumentsDir string
}

// IngestionConfigFromSettings builds the pipeline configuration from settings.
func IngestionConfigFromSettings(s domain.IngestionSettings) IngestionConfig {
	retry := DefaultRetryPolicy()
	retry.MaxRetries = s.MaxRetries
	if s.InitialBackoff > 0 {
		retry.InitialInterval = s.InitialBackoff
	}
	return IngestionConfig{
		Workers:       s.Workers,
		Retry:         retry,
		RatePerSecond: s.RatePerSecond,
		BatchSize:     s.BatchSize,
		MaxFileSize:   s.MaxFileSize,
		DocumentsDir:  s.DocumentsDir,
	}
}

func (c IngestionConfig) withDefaults() IngestionConfig {
	if c.Workers <= 0 {
		c.Workers = domain.DefaultWorkers
	}
	if c.BatchSize <= 0 {
		c.BatchSize = domain.DefaultBatchSize
	}
	if c.Retry.MaxInterval <= 0 {
		c.Retry.MaxInterval = DefaultRetryPolicy().MaxInterval
	}
	if c.Retry.InitialInterval <= 0 {
		c.Retry.InitialInterval = domain.DefaultInitialBackoff
	}
	if c.DocumentsDir == "" {
		c.DocumentsDir = domain.DefaultDocumentsDir
	}
	return c
}

// IngestionOption configures an IngestionService.
type IngestionOption func(*IngestionService)

// WithIngestionClock sets the time source used for record timestamps.
func WithIngestionClock(now func() time.Time) IngestionOption {
	return func(s *IngestionService) {
		if now != nil {
			s.now = now
		}
	}
}

// IngestionService chunks documents, embeds the chunks and writes them to
// the vector index. A source is either fully written or left absent.
type IngestionService struct {
	chunker     driven.Chunker
	embedder    driven.EmbeddingService
	index       driven.VectorIndex
	normalisers driven.NormaliserRegistry
	cfg         IngestionConfig
	limiter     *rate.Limiter
	now         func() time.Time
}

// NewIngestionService creates a new ingestion service.
// normalisers may be nil when only text ingestion is needed.
func NewIngestionService(
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	normalisers driven.NormaliserRegistry,
	cfg IngestionConfig,
	opts ...IngestionOption,
) *IngestionService {
	cfg = cfg.withDefaults()

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	s := &IngestionService{
		chunker:     chunker,
		embedder:    embedder,
		index:       index,
		normalisers: normalisers,
		cfg:         cfg,
		limiter:     rate.NewLimiter(limit, max(1, cfg.Workers)),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest splits req.Content into chunks, embeds them and upserts one
// record per chunk.
func (s *IngestionService) Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestReport, error) {
	if strings.TrimSpace(req.SourceID) == "" {
		return nil, fmt.Errorf("%w: source id is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Content) == "" {
		return nil, fmt.Errorf("%w: %s", domain.ErrEmptyContent, req.SourceID)
	}
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	if s.index == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	start := s.now()
	logger.Section("Ingesting %s", req.SourceID)

	dim, err := s.checkDimensions(ctx)
	if err != nil {
		return nil, err
	}

	total := s.chunker.Count(req.Content)
	logger.Debug("Split %s into %d chunks", req.SourceID, total)

	records, err := s.embedChunks(ctx, req, total, dim)
	if err != nil {
		logger.Warn("Ingest of %s failed: %v", req.SourceID, err)
		return nil, err
	}

	if err := s.write(ctx, req.SourceID, records); err != nil {
		logger.Warn("Ingest of %s failed: %v", req.SourceID, err)
		return nil, err
	}

	report := &domain.IngestReport{
		SourceID:       req.SourceID,
		ChunksCreated:  total,
		BytesProcessed: len(req.Content),
		Duration:       s.now().Sub(start),
	}
	logger.Info("Ingested %s: %d chunks in %s", req.SourceID, total, report.Duration.Round(time.Millisecond))
	return report, nil
}

// checkDimensions verifies the embedder and index agree on vector length.
func (s *IngestionService) checkDimensions(ctx context.Context) (int, error) {
	desc, err := s.index.Describe(ctx)
	if err != nil {
		return 0, fmt.Errorf("describe index: %w", err)
	}
	if desc.Dimension != s.embedder.Dimensions() {
		return 0, &domain.DimensionMismatchError{
			Expected: desc.Dimension,
			Actual:   s.embedder.Dimensions(),
		}
	}
	return desc.Dimension, nil
}

// embedChunks embeds every chunk with bounded concurrency. Records land in
// an arena indexed by chunk sequence, so their order does not depend on
// completion order.
func (s *IngestionService) embedChunks(ctx context.Context, req domain.IngestRequest, total, dim int) ([]domain.IndexRecord, error) {
	records := make([]domain.IndexRecord, total)
	ingestedAt := s.now().UTC().Format(time.RFC3339)
	model := s.embedder.ModelName()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)

	for chunk := range s.chunker.Split(req.SourceID, req.Content) {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if chunk.Index < 0 || chunk.Index >= total {
				return fmt.Errorf("chunk %d out of range [0,%d)", chunk.Index, total)
			}

			vec, err := s.embedChunk(gctx, chunk)
			if err != nil {
				return err
			}
			if len(vec) != dim {
				return &domain.DimensionMismatchError{Expected: dim, Actual: len(vec)}
			}

			records[chunk.Index] = domain.IndexRecord{
				ID:       chunk.ID(),
				Vector:   vec,
				Text:     chunk.Text,
				Metadata: recordMetadata(req, chunk, ingestedAt, model, dim),
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *IngestionService) embedChunk(ctx context.Context, chunk domain.Chunk) ([]float32, error) {
	var vec []float32
	attempts, err := retry(ctx, s.cfg.Retry, fmt.Sprintf("embed chunk %d", chunk.Index), func() error {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
		v, err := s.embedder.Embed(ctx, chunk.Text)
		if err != nil {
			return err
		}
		vec = v
		return nil
	})
	if err == nil {
		return vec, nil
	}
	if errors.Is(err, domain.ErrDimensionMismatch) || ctx.Err() != nil {
		return nil, err
	}
	return nil, &domain.EmbeddingError{
		ChunkIndex: chunk.Index,
		Attempts:   attempts,
		Err:        err,
	}
}

// write upserts records in sequence order, then prunes records left over
// from a longer previous version of the source. When a batch fails the
// source is removed so it is never left half replaced.
func (s *IngestionService) write(ctx context.Context, sourceID string, records []domain.IndexRecord) error {
	total := len(records)
	for start := 0; start < total; start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, total)
		batch := records[start:end]

		_, err := retry(ctx, s.cfg.Retry, fmt.Sprintf("upsert %s[%d:%d]", sourceID, start, end), func() error {
			return s.index.Upsert(ctx, batch)
		})
		if err != nil {
			s.rollback(ctx, sourceID)
			return asWriteFailure(err)
		}
		logger.Debug("Upserted %s records %d-%d", sourceID, start, end-1)
	}

	_, err := retry(ctx, s.cfg.Retry, "prune "+sourceID, func() error {
		return s.index.DeleteSource(ctx, sourceID, total)
	})
	if err != nil {
		return asWriteFailure(fmt.Errorf("prune stale records: %w", err))
	}
	return nil
}

func (s *IngestionService) rollback(ctx context.Context, sourceID string) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := s.index.DeleteSource(rctx, sourceID, 0); err != nil {
		logger.Warn("Rollback of %s failed: %v", sourceID, err)
		return
	}
	logger.Debug("Rolled back %s", sourceID)
}

func asWriteFailure(err error) error {
	if errors.Is(err, domain.ErrIndexWriteFailure) || errors.Is(err, domain.ErrDimensionMismatch) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrIndexWriteFailure, err)
}

func recordMetadata(req domain.IngestRequest, chunk domain.Chunk, ingestedAt, model string, dim int) map[string]any {
	meta := make(map[string]any, len(req.Metadata)+7)
	maps.Copy(meta, req.Metadata)
	meta[domain.MetaSource] = req.SourceID
	meta[domain.MetaChunkIndex] = chunk.Index
	meta[domain.MetaTotalChunks] = chunk.Total
	meta[domain.MetaIngestedAt] = ingestedAt
	meta[domain.MetaEmbeddingModel] = model
	meta[domain.MetaEmbeddingDimension] = dim
	meta[domain.MetaOversized] = chunk.Oversized
	return meta
}

// IngestFile extracts text from an uploaded file and ingests it with the
// file name as the source id.
func (s *IngestionService) IngestFile(ctx context.Context, file domain.FileUpload) (*domain.IngestReport, error) {
	name := strings.TrimSpace(file.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	}
	if s.cfg.MaxFileSize > 0 && int64(len(file.Content)) > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit is %d",
			domain.ErrFileTooLarge, name, len(file.Content), s.cfg.MaxFileSize)
	}
	if s.normalisers == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, name)
	}

	mimeType := s.normalisers.Detect(name, file.MIMEType, file.Content)
	n := s.normalisers.Get(mimeType)
	if n == nil {
		return nil, fmt.Errorf("%w: %s (%s)", domain.ErrUnsupportedType, name, mimeType)
	}
	logger.Debug("Normalising %s as %s", name, mimeType)

	result, err := n.Normalise(ctx, &domain.RawDocument{
		SourceID: name,
		URI:      name,
		MIMEType: mimeType,
		Content:  file.Content,
	})
	if err != nil {
		return nil, fmt.Errorf("normalise %s: %w", name, err)
	}

	fileType := domain.FileTypeFromMIME(mimeType)
	if fileType == domain.FileTypeUnknown {
		fileType = domain.FileTypeFromName(name)
	}

	meta := make(map[string]any, len(result.Document.Metadata)+3)
	maps.Copy(meta, result.Document.Metadata)
	meta[domain.MetaType] = fileType.String()
	meta[domain.MetaUploadedAt] = s.now().UTC().Format(time.RFC3339)
	meta[domain.MetaFileSize] = len(file.Content)

	return s.Ingest(ctx, domain.IngestRequest{
		SourceID: name,
		Content:  result.Document.Content,
		Metadata: meta,
	})
}

// Remove deletes every record of sourceID.
func (s *IngestionService) Remove(ctx context.Context, sourceID string) error {
	if s.index == nil {
		return domain.ErrVectorIndexUnavailable
	}
	if err := s.index.DeleteSource(ctx, sourceID, 0); err != nil {
		return asWriteFailure(err)
	}
	logger.Info("Removed %s", sourceID)
	return nil
}
