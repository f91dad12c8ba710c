package driven

import (
	"iter"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// Chunker splits document text into overlapping chunks.
type Chunker interface {
	// Split returns the chunks of text as a lazy, restartable sequence.
	Split(sourceID, text string) iter.Seq[domain.Chunk]

	// Count returns the number of chunks Split would yield.
	Count(text string) int
}
