// Package textutil holds helpers shared by the normalisers.
package textutil

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
)

// TitleFromName turns a file name into a readable title:
// "docs/getting_started-guide.md" becomes "getting started guide".
func TitleFromName(name string) string {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) {
		return ""
	}
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return strings.Join(strings.FieldsFunc(base, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	}), " ")
}

// Result builds the normalisation result for raw with the extracted title
// and content. An empty title falls back to the file name.
func Result(raw *domain.RawDocument, title, content string, fileType domain.FileType) *driven.NormaliseResult {
	if title == "" {
		title = TitleFromName(raw.URI)
	}

	meta := make(map[string]any, len(raw.Metadata)+2)
	for k, v := range raw.Metadata {
		meta[k] = v
	}
	meta[domain.MetaMIMEType] = raw.MIMEType
	if title != "" {
		meta[domain.MetaTitle] = title
	}

	return &driven.NormaliseResult{
		Document: domain.Document{
			SourceID:    raw.SourceID,
			URI:         raw.URI,
			Title:       title,
			Content:     content,
			Type:        fileType,
			Metadata:    meta,
			ExtractedAt: time.Now().UTC(),
		},
	}
}

// CollapseBlankLines trims every line and keeps at most one blank line
// between paragraphs.
func CollapseBlankLines(text string) string {
	var b strings.Builder
	blank := 0
	for line := range strings.SplitSeq(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			blank++
			continue
		}
		if b.Len() > 0 {
			if blank > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		blank = 0
		b.WriteString(line)
	}
	return b.String()
}
