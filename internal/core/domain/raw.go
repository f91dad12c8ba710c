package domain

// RawDocument represents opaque file bytes before normalisation.
type RawDocument struct {
	// SourceID names the document the bytes belong to.
	SourceID string

	// URI is the original location (file path, upload name).
	URI string

	// MIMEType is the content type (e.g., "application/pdf").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains upload-specific key-value pairs.
	Metadata map[string]any
}
