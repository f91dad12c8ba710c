// Package markdown provides a Normaliser for Markdown documents.
package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/normalisers/textutil"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles Markdown documents.
type Normaliser struct{}

// New creates a new Markdown normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise strips Markdown syntax and keeps the readable text. The first
// level one heading becomes the title.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	source := strings.ReplaceAll(string(raw.Content), "\r\n", "\n")
	source, frontMatterTitle := stripFrontMatter(source)

	title := firstHeading(source)
	if title == "" {
		title = frontMatterTitle
	}

	return textutil.Result(raw, title, Strip(source), domain.FileTypeMarkdown), nil
}

var (
	fenceLine    = regexp.MustCompile("(?m)^[ \t]*(```|~~~).*$")
	inlineCode   = regexp.MustCompile("`([^`\n]+)`")
	images       = regexp.MustCompile(`!\[([^\]]*)\]\([^)]*\)`)
	links        = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	refLinkDefs  = regexp.MustCompile(`(?m)^[ \t]*\[[^\]]+\]:[ \t]+\S+.*$`)
	headings     = regexp.MustCompile(`(?m)^[ \t]{0,3}#{1,6}[ \t]+`)
	emphasis     = regexp.MustCompile(`(\*\*|__|\*|_|~~)([^*_~\n]+)(\*\*|__|\*|_|~~)`)
	blockquotes  = regexp.MustCompile(`(?m)^[ \t]*>[ \t]?`)
	rules        = regexp.MustCompile(`(?m)^[ \t]*([-*_][ \t]*){3,}$`)
	bullets      = regexp.MustCompile(`(?m)^([ \t]*)[-*+][ \t]+(\[[ xX]\][ \t]+)?`)
	numbered     = regexp.MustCompile(`(?m)^([ \t]*)\d+[.)][ \t]+`)
	tableRules   = regexp.MustCompile(`(?m)^[ \t]*\|?[ \t]*:?-{3,}:?[ \t]*(\|[ \t]*:?-{3,}:?[ \t]*)*\|?[ \t]*$\n?`)
	htmlComments = regexp.MustCompile(`(?s)<!--.*?-->`)
	h1           = regexp.MustCompile(`(?m)^[ \t]{0,3}#[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	fmTitle      = regexp.MustCompile(`(?m)^title:[ \t]*["']?(.+?)["']?[ \t]*$`)
)

// Strip converts Markdown to plain text. Code block contents are kept
// without their fences.
func Strip(content string) string {
	content = htmlComments.ReplaceAllString(content, "")
	content = fenceLine.ReplaceAllString(content, "")
	content = inlineCode.ReplaceAllString(content, "$1")
	content = images.ReplaceAllString(content, "$1")
	content = links.ReplaceAllString(content, "$1")
	content = refLinkDefs.ReplaceAllString(content, "")
	content = headings.ReplaceAllString(content, "")
	content = tableRules.ReplaceAllString(content, "")
	content = rules.ReplaceAllString(content, "")
	content = blockquotes.ReplaceAllString(content, "")
	content = bullets.ReplaceAllString(content, "$1")
	content = numbered.ReplaceAllString(content, "$1")
	// Nested emphasis needs a second pass.
	content = emphasis.ReplaceAllString(content, "$2")
	content = emphasis.ReplaceAllString(content, "$2")
	return textutil.CollapseBlankLines(content)
}

func firstHeading(content string) string {
	if m := h1.FindStringSubmatch(content); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// stripFrontMatter removes a leading YAML front matter block and returns
// its title, if any.
func stripFrontMatter(content string) (string, string) {
	if !strings.HasPrefix(content, "---\n") {
		return content, ""
	}
	end := strings.Index(content[4:], "\n---")
	if end < 0 {
		return content, ""
	}
	block := content[4 : 4+end]
	rest := strings.TrimPrefix(content[4+end+4:], "\n")

	title := ""
	if m := fmTitle.FindStringSubmatch(block); m != nil {
		title = m[1]
	}
	return rest, title
}
