// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The retrieval-augmented pipeline lives here:
//
//   - IngestionService: chunk, embed and index documents
//   - Retriever: turn a query vector into a context window
//   - AnswerStreamer: stream a grounded answer token by token
//   - QueryService: the request boundary tying retrieval and answering together
package services
