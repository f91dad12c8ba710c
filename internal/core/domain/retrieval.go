package domain

import (
	"fmt"
	"strings"
)

// DefaultContextSeparator joins rendered entries of a context window.
const DefaultContextSeparator = "\n---\n"

// RetrievalResult is a record paired with its similarity to the query.
// It only lives for the duration of one query.
type RetrievalResult struct {
	Record IndexRecord
	Score  float64
}

// ContextWindow is the grounding context assembled for one question.
// A window with no entries is the explicit "nothing relevant" marker.
type ContextWindow struct {
	// Entries are the results that passed the relevance threshold,
	// in descending score order.
	Entries []RetrievalResult

	// Text is the rendered context handed to the prompt.
	Text string
}

// IsEmpty reports whether no result passed the relevance threshold.
func (w ContextWindow) IsEmpty() bool {
	return len(w.Entries) == 0
}

// RenderEntry formats a single result as "(score) text".
func RenderEntry(r RetrievalResult) string {
	return fmt.Sprintf("(%.4f) %s", r.Score, r.Record.Text)
}

// NewContextWindow renders results into a context window using sep.
// Results are expected to already be filtered and ordered.
func NewContextWindow(results []RetrievalResult, sep string) ContextWindow {
	if len(results) == 0 {
		return ContextWindow{}
	}

	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = RenderEntry(r)
	}

	return ContextWindow{
		Entries: results,
		Text:    strings.Join(parts, sep),
	}
}
