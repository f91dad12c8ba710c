package driven

import (
	"context"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// Normaliser extracts plain text from raw file bytes.
// Each normaliser handles specific MIME types (e.g., PDF, Markdown).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Generic MIME normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise transforms a raw document into a text document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
type NormaliseResult struct {
	// Document is the normalised document with Content populated.
	Document domain.Document
}

// NormaliserRegistry selects a normaliser for a MIME type.
type NormaliserRegistry interface {
	// Detect resolves the MIME type of a file from its declared type,
	// name and content.
	Detect(name, declared string, content []byte) string

	// Register adds a normaliser.
	Register(n Normaliser)

	// Get returns the highest priority normaliser for mimeType, or nil.
	Get(mimeType string) Normaliser

	// SupportedMIMETypes returns every MIME type with a registered normaliser.
	SupportedMIMETypes() []string
}
