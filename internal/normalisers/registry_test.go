package normalisers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/normalisers/markdown"
	"github.com/custodia-labs/askdocs/internal/normalisers/plaintext"
)

type stubNormaliser struct {
	name     string
	priority int
	types    []string
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int                { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	return &driven.NormaliseResult{Document: domain.Document{Content: s.name + ":" + string(raw.Content)}}, nil
}

func TestRegistry_PriorityOrder(t *testing.T) {
	r := NewRegistry()
	low := &stubNormaliser{name: "low", priority: 5, types: []string{"text/plain"}}
	high := &stubNormaliser{name: "high", priority: 50, types: []string{"text/plain"}}
	tie := &stubNormaliser{name: "tie", priority: 50, types: []string{"text/plain"}}

	r.Register(low)
	r.Register(high)
	r.Register(tie)
	r.Register(nil)

	assert.Same(t, high, r.Get("text/plain"))
}

func TestRegistry_GetNormalisesMIME(t *testing.T) {
	r := NewRegistry()
	r.Register(plaintext.New())

	assert.NotNil(t, r.Get("Text/Plain; charset=utf-8"))
	assert.Nil(t, r.Get("application/zip"))
	assert.Nil(t, r.Get(""))
}

func TestNewDefaultRegistry(t *testing.T) {
	r := NewDefaultRegistry()

	assert.Equal(t, []string{
		"application/pdf",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/xhtml+xml",
		"text/html",
		"text/markdown",
		"text/plain",
		"text/x-markdown",
	}, r.SupportedMIMETypes())
	assert.IsType(t, &markdown.Normaliser{}, r.Get(MIMEMarkdown))
}

func TestDefaultRegistry_EndToEnd(t *testing.T) {
	r := NewDefaultRegistry()
	content := []byte("# Title\n\nSome *body* text.")

	mt := r.Detect("notes.md", "", content)
	n := r.Get(mt)
	require.NotNil(t, n)

	res, err := n.Normalise(context.Background(), &domain.RawDocument{URI: "notes.md", MIMEType: mt, Content: content})
	require.NoError(t, err)
	assert.Equal(t, "Title\n\nSome body text.", res.Document.Content)
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name     string
		file     string
		declared string
		content  []byte
		want     string
	}{
		{"declared wins", "a.txt", "text/markdown", []byte("x"), MIMEMarkdown},
		{"declared params dropped", "upload", "Text/Plain; charset=utf-8", []byte("x"), MIMEPlainText},
		{"generic declared ignored", "a.pdf", "application/octet-stream", nil, MIMEPDF},
		{"extension txt", "notes.TXT", "", []byte("hello"), MIMEPlainText},
		{"extension markdown", "README.markdown", "", nil, MIMEMarkdown},
		{"extension docx", "plan.docx", "", []byte("PK\x03\x04"), MIMEDOCX},
		{"extension htm", "index.htm", "", nil, MIMEHTML},
		{"sniffed pdf", "download", "", []byte("%PDF-1.7\n..."), MIMEPDF},
		{"sniffed html", "page", "", []byte("<!DOCTYPE html><html><body>hi</body></html>"), MIMEHTML},
		{"sniffed text", "notes", "", []byte("just a few words of text"), MIMEPlainText},
		{"binary", "image", "", []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0}, "image/png"},
		{"empty without extension", "blob", "", nil, MIMEBinary},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Detect(tt.file, tt.declared, tt.content))
		})
	}
}
