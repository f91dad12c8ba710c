package domain

import (
	"strconv"
	"strings"
	"time"
)

// Chunk is a bounded contiguous slice of a source's text.
// Chunks are produced by the chunker and never mutated afterwards.
type Chunk struct {
	// Text is the chunk content, including any overlap copied from the
	// previous chunk. Never empty.
	Text string

	// SourceID identifies the document the chunk was cut from.
	SourceID string

	// Index is the zero-based sequence index within the source.
	Index int

	// Total is the number of chunks the source was split into.
	Total int

	// Overlap is the number of leading characters duplicated from the
	// tail of the previous chunk.
	Overlap int

	// Oversized marks a single indivisible unit longer than the maximum
	// chunk size that was emitted whole.
	Oversized bool

	// CreatedAt is when the chunk was produced.
	CreatedAt time.Time
}

// ID returns the stable record id for the chunk.
func (c Chunk) ID() string {
	return RecordID(c.SourceID, c.Index)
}

// Body returns the chunk text without its overlapping prefix.
func (c Chunk) Body() string {
	if c.Overlap <= 0 {
		return c.Text
	}
	runes := []rune(c.Text)
	if c.Overlap >= len(runes) {
		return ""
	}
	return string(runes[c.Overlap:])
}

// RecordID builds the stable id used for a source's chunk in the vector
// index. Re-ingesting a source overwrites records rather than duplicating them.
func RecordID(sourceID string, index int) string {
	return sourceID + "#" + strconv.Itoa(index)
}

// ParseRecordID splits a record id built by RecordID into its source id
// and chunk index.
func ParseRecordID(id string) (sourceID string, index int, ok bool) {
	i := strings.LastIndexByte(id, '#')
	if i < 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 0 {
		return "", 0, false
	}
	return id[:i], n, true
}
