package normalisers

import (
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-enry/go-enry/v2"
)

// Well-known MIME types.
const (
	MIMEPlainText = "text/plain"
	MIMEMarkdown  = "text/markdown"
	MIMEHTML      = "text/html"
	MIMEPDF       = "application/pdf"
	MIMEDOCX      = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEBinary    = "application/octet-stream"
)

var extensionTypes = map[string]string{
	".txt":      MIMEPlainText,
	".text":     MIMEPlainText,
	".md":       MIMEMarkdown,
	".markdown": MIMEMarkdown,
	".html":     MIMEHTML,
	".htm":      MIMEHTML,
	".pdf":      MIMEPDF,
	".docx":     MIMEDOCX,
}

// languageTypes maps go-enry language names to MIME types.
var languageTypes = map[string]string{
	"Text":     MIMEPlainText,
	"Markdown": MIMEMarkdown,
	"HTML":     MIMEHTML,
}

// Detect resolves the MIME type of a file. A declared type wins unless it is
// empty or generic, then the extension, then the language go-enry detects
// from the name and content, then content sniffing.
func Detect(name, declared string, content []byte) string {
	if mt := normaliseMIME(declared); mt != "" && mt != MIMEBinary {
		return mt
	}

	if mt, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return mt
	}

	if len(content) == 0 {
		return MIMEBinary
	}

	sniffed := normaliseMIME(http.DetectContentType(content))
	if sniffed == MIMEPDF {
		return sniffed
	}
	if enry.IsBinary(content) {
		return sniffed
	}

	if mt, ok := languageTypes[enry.GetLanguage(filepath.Base(name), content)]; ok {
		return mt
	}
	return sniffed
}
