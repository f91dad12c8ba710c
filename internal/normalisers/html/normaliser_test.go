package html

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

const page = `<!DOCTYPE html>
<html>
<head><title>Fish &amp; Chips</title><style>body { color: red; }</style></head>
<body>
  <script>alert("x")</script>
  <h1>Menu</h1>
  <p>Fresh cod,<br>served daily.</p>
  <!-- specials -->
  <ul><li>Small</li><li>Large</li></ul>
  <table><tr><td>Cod</td><td>&pound;9</td></tr></table>
</body>
</html>`

func TestSupportedMIMETypes(t *testing.T) {
	n := New()

	assert.ElementsMatch(t, []string{"text/html", "application/xhtml+xml"}, n.SupportedMIMETypes())
	assert.Equal(t, 50, n.Priority())
}

func TestNormalise_Success(t *testing.T) {
	raw := &domain.RawDocument{SourceID: "menu.html", URI: "menu.html", MIMEType: "text/html", Content: []byte(page)}

	result, err := New().Normalise(context.Background(), raw)
	require.NoError(t, err)

	doc := result.Document
	assert.Equal(t, "Fish & Chips", doc.Title)
	assert.Equal(t, domain.FileTypeHTML, doc.Type)
	assert.Equal(t, "Menu\n\nFresh cod,\nserved daily.\n\nSmall\n\nLarge\n\nCod £9", doc.Content)
	assert.NotContains(t, doc.Content, "alert")
	assert.NotContains(t, doc.Content, "color")
}

func TestNormalise_TitleFallbacks(t *testing.T) {
	tests := []struct {
		name  string
		uri   string
		page  string
		title string
	}{
		{"h1 when no title", "a.html", "<h1>Only <em>heading</em></h1>", "Only heading"},
		{"file name when empty", "release-notes.htm", "<p>text</p>", "release notes"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := New().Normalise(context.Background(), &domain.RawDocument{URI: tt.uri, Content: []byte(tt.page)})
			require.NoError(t, err)
			assert.Equal(t, tt.title, result.Document.Title)
		})
	}
}

func TestNormalise_NilDocument(t *testing.T) {
	_, err := New().Normalise(context.Background(), nil)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestText_Entities(t *testing.T) {
	assert.Equal(t, "a < b & c", Text("<p>a &lt; b &amp;&nbsp;c</p>"))
}
