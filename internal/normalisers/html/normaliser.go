// Package html provides a Normaliser for HTML documents. Scripts, styles
// and markup are dropped and entities decoded, leaving the readable text.
package html

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/normalisers/textutil"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML documents.
type Normaliser struct{}

// New creates a new HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise extracts the text of an HTML page. The <title> element, or
// failing that the first <h1>, becomes the title.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	page := string(raw.Content)
	title := firstMatch(titleTag, page)
	if title == "" {
		title = firstMatch(h1Tag, page)
	}

	return textutil.Result(raw, title, Text(page), domain.FileTypeHTML), nil
}

var (
	titleTag      = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	h1Tag         = regexp.MustCompile(`(?is)<h1[^>]*>(.*?)</h1>`)
	droppedBlocks = regexp.MustCompile(`(?is)<(script|style|noscript|head|svg|template)\b[^>]*>.*?</(script|style|noscript|head|svg|template)>`)
	comments      = regexp.MustCompile(`(?s)<!--.*?-->`)
	blockBoundary = regexp.MustCompile(`(?i)</?(p|div|h[1-6]|li|ul|ol|tr|table|blockquote|pre|section|article|header|footer|nav|main|aside)\b[^>]*>`)
	lineBreaks    = regexp.MustCompile(`(?i)<(br|hr)\b[^>]*>`)
	cellBoundary  = regexp.MustCompile(`(?i)</t[dh]>`)
	anyTag        = regexp.MustCompile(`<[^>]+>`)
	spaces        = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
)

// Text converts an HTML document to plain text with one paragraph per
// block element.
func Text(page string) string {
	page = droppedBlocks.ReplaceAllString(page, "")
	page = comments.ReplaceAllString(page, "")
	page = blockBoundary.ReplaceAllString(page, "\n\n")
	page = lineBreaks.ReplaceAllString(page, "\n")
	page = cellBoundary.ReplaceAllString(page, " ")
	page = anyTag.ReplaceAllString(page, "")
	page = html.UnescapeString(page)
	page = spaces.ReplaceAllString(page, " ")
	return textutil.CollapseBlankLines(page)
}

func firstMatch(re *regexp.Regexp, page string) string {
	m := re.FindStringSubmatch(page)
	if m == nil {
		return ""
	}
	text := anyTag.ReplaceAllString(m[1], "")
	return strings.Join(strings.Fields(html.UnescapeString(text)), " ")
}
