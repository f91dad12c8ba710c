// Package domain defines the core business entities for askdocs.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A bounded, overlapping slice of a source's text
//   - IndexRecord: A chunk's vector, text and metadata as stored in the vector index
//   - RetrievalResult: A scored index record returned by a nearest-neighbour query
//   - ContextWindow: The rendered grounding context handed to the answer streamer
//   - StreamSession: The lifecycle of one streamed answer
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
