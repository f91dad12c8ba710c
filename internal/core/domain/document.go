package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// Document is the normalised text extracted from an uploaded file.
// It is the input handed to the chunker.
type Document struct {
	// SourceID names the document in the vector index.
	SourceID string

	// URI is the original location (file path or upload name).
	URI string

	// Title is the human-readable title, if one could be extracted.
	Title string

	// Content is the full extracted text.
	Content string

	// Type is the coarse file type.
	Type FileType

	// Metadata contains normaliser-specific key-value pairs.
	Metadata map[string]any

	// ExtractedAt is when normalisation ran.
	ExtractedAt time.Time
}

// FileType is the coarse document type recorded in record metadata.
type FileType string

// Known file types.
const (
	FileTypePDF      FileType = "pdf"
	FileTypeText     FileType = "text"
	FileTypeMarkdown FileType = "markdown"
	FileTypeWord     FileType = "word"
	FileTypeHTML     FileType = "html"
	FileTypeUnknown  FileType = "unknown"
)

// String returns the string representation.
func (t FileType) String() string {
	return string(t)
}

// FileTypeFromName derives the file type from a file name's extension.
func FileTypeFromName(name string) FileType {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return FileTypePDF
	case ".txt", ".text":
		return FileTypeText
	case ".md", ".markdown":
		return FileTypeMarkdown
	case ".docx":
		return FileTypeWord
	case ".html", ".htm":
		return FileTypeHTML
	default:
		return FileTypeUnknown
	}
}

// FileTypeFromMIME derives the file type from a MIME type.
func FileTypeFromMIME(mimeType string) FileType {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}

	switch mt {
	case "application/pdf":
		return FileTypePDF
	case "text/plain":
		return FileTypeText
	case "text/markdown", "text/x-markdown":
		return FileTypeMarkdown
	case "application/vnd.openxmlformats-officedocument.wordprocessingml.document":
		return FileTypeWord
	case "text/html", "application/xhtml+xml":
		return FileTypeHTML
	default:
		return FileTypeUnknown
	}
}
