package domain

import "strings"

// QueryRequest is a question arriving at the query boundary.
type QueryRequest struct {
	// Question is the natural-language question. Required.
	Question string

	// QueryVector is an optional precomputed query embedding,
	// e.g. an image feature vector.
	QueryVector []float32

	// Label is an optional image-classification label prefixed to the question.
	Label string

	// TopK overrides the configured number of neighbours when positive.
	TopK int

	// Threshold overrides the configured relevance threshold when set.
	Threshold *float64
}

// EffectiveQuestion returns the question with the label prefix applied.
func (r QueryRequest) EffectiveQuestion() string {
	q := strings.TrimSpace(r.Question)
	label := strings.TrimSpace(r.Label)
	if label == "" {
		return q
	}
	return label + ". " + q
}
