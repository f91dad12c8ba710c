package driven

// PromptStore provides access to generator prompt templates.
// Implementations may load prompts from files or embed them in the binary.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Unknown names return an error; known names fall back to their defaults.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names.
const (
	// PromptAnswer grounds an answer in retrieved context.
	// The template uses {context} and {question} placeholders.
	PromptAnswer = "answer"

	// PromptDirect answers without retrieval.
	// The template uses a {question} placeholder.
	PromptDirect = "direct"
)

// Default prompt templates.
const (
	DefaultAnswerPrompt = "Use the context to answer. If context is irrelevant say so.\n\nContext:\n{context}\n\nQuestion:\n{question}"
	DefaultDirectPrompt = "Answer the following question:\n{question}"
)
