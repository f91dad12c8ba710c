// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Collaborators
//
//   - EmbeddingService: Maps text to a fixed-dimension vector
//   - VectorIndex: Stores records and answers nearest-neighbour queries
//   - Generator: Streams completion tokens for a prompt
//
// # Supporting Interfaces
//
//   - Normaliser: Extracts text from uploaded files
//   - TokenCounter: Counts prompt tokens for context budgeting (optional)
//   - ConfigStore: Application configuration
//   - PromptStore: User-editable prompt templates
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
