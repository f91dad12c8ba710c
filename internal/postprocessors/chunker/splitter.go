// Package chunker provides a recursive, overlap-aware text splitter.
//
// Text is split on the coarsest separator present, recursing into pieces
// that are still too long with the next finer separator. Pieces are then
// merged greedily up to the chunk size and each chunk is prefixed with the
// tail of the one before it.
package chunker

import (
	"iter"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// DefaultSeparators are tried in order from coarse to fine: paragraph,
// line, sentence, word and finally single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter splits document text into chunks.
// A Splitter is immutable and safe for concurrent use.
type Splitter struct {
	chunkSize  int
	overlap    int
	separators []string
	now        func() time.Time
}

// Option configures the splitter.
type Option func(*Splitter)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		if size > 0 {
			s.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		if overlap >= 0 {
			s.overlap = overlap
		}
	}
}

// WithSeparators replaces the separator list. The empty string splits into
// single characters; without it, a piece that no separator can break is
// emitted whole and flagged oversized.
func WithSeparators(seps ...string) Option {
	return func(s *Splitter) {
		if len(seps) > 0 {
			s.separators = append([]string(nil), seps...)
		}
	}
}

// WithClock sets the time source used for Chunk.CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Splitter) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a new splitter with the given options.
func New(opts ...Option) *Splitter {
	s := &Splitter{
		chunkSize:  DefaultChunkSize,
		overlap:    DefaultChunkOverlap,
		separators: DefaultSeparators,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	// Guard only; invalid configured sizes are rejected by ChunkerSettings.Validate.
	if s.overlap >= s.chunkSize {
		s.overlap = s.chunkSize / 4
	}

	return s
}

// ChunkSize returns the maximum chunk length in characters.
func (s *Splitter) ChunkSize() int {
	return s.chunkSize
}

// Overlap returns the overlap length in characters.
func (s *Splitter) Overlap() int {
	return s.overlap
}

// Split returns the chunks of text as a lazy sequence. Each range over the
// sequence re-runs the split, so it can be iterated more than once and
// always yields the same chunks. Empty text yields nothing.
func (s *Splitter) Split(sourceID, text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		if text == "" {
			return
		}

		total := s.Count(text)
		createdAt := s.now()

		s.merge(text, func(c span) bool {
			return yield(domain.Chunk{
				Text:      c.text,
				SourceID:  sourceID,
				Index:     c.index,
				Total:     total,
				Overlap:   c.overlap,
				Oversized: c.oversized,
				CreatedAt: createdAt,
			})
		})
	}
}

// Count returns the number of chunks Split would produce for text.
func (s *Splitter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := 0
	s.merge(text, func(span) bool {
		n++
		return true
	})
	return n
}

// span is a merged chunk before provenance is attached.
type span struct {
	text      string
	index     int
	overlap   int
	oversized bool
}

// merge packs pieces into chunks and prepends the overlap.
// Pieces cut by a separator are at most chunkSize-overlap long, so they
// always fit into an empty body after the prefix. Only indivisible pieces
// can be longer.
func (s *Splitter) merge(text string, emit func(span) bool) {
	var (
		body      strings.Builder
		bodyLen   int
		prefix    string
		prefixLen int
		index     int
	)

	flush := func(chunkText string, overlap int, oversized bool) bool {
		ok := emit(span{text: chunkText, index: index, overlap: overlap, oversized: oversized})
		index++
		prefix = tail(chunkText, s.overlap)
		prefixLen = utf8.RuneCountInString(prefix)
		body.Reset()
		bodyLen = 0
		return ok
	}

	flushBody := func() bool {
		if bodyLen == 0 {
			return true
		}
		return flush(prefix+body.String(), prefixLen, false)
	}

	done := s.pieces(text, s.separators, func(piece string) bool {
		n := utf8.RuneCountInString(piece)
		if bodyLen > 0 && prefixLen+bodyLen+n > s.chunkSize {
			if !flushBody() {
				return false
			}
		}
		if bodyLen == 0 && prefixLen+n > s.chunkSize {
			// Too long to carry a prefix; emitted unchanged.
			return flush(piece, 0, n > s.chunkSize)
		}
		body.WriteString(piece)
		bodyLen += n
		return true
	})

	if done {
		flushBody()
	}
}

// pieces splits text into pieces no longer than chunkSize-overlap, keeping
// each separator attached to the piece it ends. A piece no separator can
// break is yielded whole. Concatenating the pieces reproduces text exactly.
func (s *Splitter) pieces(text string, seps []string, yield func(piece string) bool) bool {
	target := s.chunkSize - s.overlap
	if utf8.RuneCountInString(text) <= target {
		return yield(text)
	}

	for i, sep := range seps {
		if sep == "" {
			for _, r := range text {
				if !yield(string(r)) {
					return false
				}
			}
			return true
		}

		if !strings.Contains(text, sep) {
			continue
		}

		for _, part := range strings.SplitAfter(text, sep) {
			if part == "" {
				continue
			}
			if utf8.RuneCountInString(part) <= target {
				if !yield(part) {
					return false
				}
				continue
			}
			if !s.pieces(part, seps[i+1:], yield) {
				return false
			}
		}
		return true
	}

	return yield(text)
}

// tail returns the last n characters of s.
func tail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := len(s)
	for count := 0; i > 0 && count < n; count++ {
		_, size := utf8.DecodeLastRuneInString(s[:i])
		i -= size
	}
	return s[i:]
}
