package driven

// TokenCounter counts model tokens in text.
type TokenCounter interface {
	Count(text string) int
}
