package driving

import (
	"context"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// IngestionService populates the vector index from documents.
type IngestionService interface {
	// Ingest chunks, embeds and indexes text under a source id.
	// Re-ingesting a source replaces its records.
	Ingest(ctx context.Context, req domain.IngestRequest) (*domain.IngestReport, error)

	// IngestFile extracts text from an uploaded file and ingests it.
	IngestFile(ctx context.Context, file domain.FileUpload) (*domain.IngestReport, error)

	// IngestDirectory ingests every supported file under dir.
	// Per-file failures are collected in the report rather than aborting.
	IngestDirectory(ctx context.Context, dir string) (*domain.DirectoryReport, error)

	// IngestPath reads a file from disk and ingests it under sourceID.
	IngestPath(ctx context.Context, path, sourceID string) (*domain.IngestReport, error)

	// Remove deletes every record of a source.
	Remove(ctx context.Context, sourceID string) error
}
