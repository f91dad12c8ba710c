package domain

// Metric identifies the similarity function used by a vector index.
type Metric string

// Supported similarity metrics.
const (
	// MetricCosine is cosine similarity in [-1, 1].
	MetricCosine Metric = "cosine"
)

// String returns the string representation.
func (m Metric) String() string {
	return string(m)
}

// IndexRecord is a single entry in the vector index.
// Every record in one index has the same vector dimension.
type IndexRecord struct {
	// ID is unique within the index. See RecordID.
	ID string

	// Vector is the embedding of Text.
	Vector []float32

	// Text is the chunk content returned as grounding context.
	Text string

	// Metadata holds string or numeric provenance values.
	Metadata map[string]any
}

// IndexDescription reports the configuration of a vector index.
type IndexDescription struct {
	// Dimension is the vector length every record must have.
	Dimension int

	// Metric is the similarity function used by queries.
	Metric Metric

	// Count is the number of stored records, when the backend knows it.
	Count int
}

// Metadata keys attached to every ingested record.
const (
	MetaSource             = "source"
	MetaType               = "type"
	MetaChunkIndex         = "chunkIndex"
	MetaTotalChunks        = "totalChunks"
	MetaIngestedAt         = "ingestedAt"
	MetaEmbeddingModel     = "embeddingModel"
	MetaEmbeddingDimension = "embeddingDimension"
	MetaOversized          = "oversized"
	MetaUploadedAt         = "uploadedAt"
	MetaFileSize           = "fileSize"
)

// Metadata keys set by normalisers.
const (
	MetaTitle    = "title"
	MetaMIMEType = "mimeType"
	MetaPages    = "pages"
)
