// Package normalisers provides implementations of the Normaliser interface
// for the document formats askdocs ingests. Each normaliser knows how to
// extract text content from a specific MIME type.
//
// NewDefaultRegistry returns a Registry with every built-in normaliser
// registered: PDF, plain text, Markdown, HTML and DOCX.
package normalisers
