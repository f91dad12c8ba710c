package domain

import "time"

// IngestRequest is the input to the ingestion pipeline.
type IngestRequest struct {
	// SourceID names the document. Records are keyed by it, so
	// re-ingesting the same source replaces its chunks.
	SourceID string

	// Content is the document text.
	Content string

	// Metadata is attached to every record of the source.
	Metadata map[string]any
}

// IngestReport summarises a successful ingest.
type IngestReport struct {
	SourceID       string
	ChunksCreated  int
	BytesProcessed int
	Duration       time.Duration
}

// FileUpload is a document file handed to the ingestion service.
// Only the extracted text is kept; the raw bytes are discarded.
type FileUpload struct {
	// Name is the file name, used as the source id.
	Name string

	// MIMEType is the declared content type. May be empty.
	MIMEType string

	// Content is the raw file bytes.
	Content []byte
}

// DirectoryReport summarises a directory ingest.
type DirectoryReport struct {
	Dir            string
	FilesProcessed int
	FilesFailed    int
	TotalChunks    int
	ByType         map[FileType]int
	Failures       map[string]error
	Duration       time.Duration
}
