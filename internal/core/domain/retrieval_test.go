package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestNewContextWindow_Empty tests the empty context marker
func TestNewContextWindow_Empty(t *testing.T) {
	w := NewContextWindow(nil, DefaultContextSeparator)

	assert.True(t, w.IsEmpty())
	assert.Empty(t, w.Text)
}

// TestNewContextWindow_Render tests score-annotated rendering
func TestNewContextWindow_Render(t *testing.T) {
	results := []RetrievalResult{
		{Record: IndexRecord{ID: "a#0", Text: "Sharpen the pencil."}, Score: 0.82},
		{Record: IndexRecord{ID: "a#1", Text: "Empty the tray."}, Score: 0.5},
	}

	w := NewContextWindow(results, DefaultContextSeparator)

	assert.False(t, w.IsEmpty())
	assert.Len(t, w.Entries, 2)
	assert.Equal(t, "(0.8200) Sharpen the pencil.\n---\n(0.5000) Empty the tray.", w.Text)
}

// TestRenderEntry tests four-decimal score formatting
func TestRenderEntry(t *testing.T) {
	r := RetrievalResult{Record: IndexRecord{Text: "x"}, Score: 0.123456}
	assert.Equal(t, "(0.1235) x", RenderEntry(r))
}
