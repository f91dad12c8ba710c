package normalisers

import (
	"cmp"
	"slices"
	"strings"
	"sync"

	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/normalisers/docx"
	"github.com/custodia-labs/askdocs/internal/normalisers/html"
	"github.com/custodia-labs/askdocs/internal/normalisers/markdown"
	"github.com/custodia-labs/askdocs/internal/normalisers/pdf"
	"github.com/custodia-labs/askdocs/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// Registry maps MIME types to normalisers, highest priority first.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string][]driven.Normaliser)}
}

// NewDefaultRegistry creates a registry with the built-in normalisers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// RegisterDefaults registers the built-in normalisers.
func RegisterDefaults(r driven.NormaliserRegistry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(pdf.New())
}

// Register adds a normaliser for each of its MIME types. Normalisers with
// equal priority keep registration order.
func (r *Registry) Register(n driven.Normaliser) {
	if n == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range n.SupportedMIMETypes() {
		mt = normaliseMIME(mt)
		list := append(r.byMIME[mt], n)
		slices.SortStableFunc(list, func(a, b driven.Normaliser) int {
			return cmp.Compare(b.Priority(), a.Priority())
		})
		r.byMIME[mt] = list
	}
}

// Get returns the highest priority normaliser for mimeType, or nil.
func (r *Registry) Get(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if list := r.byMIME[normaliseMIME(mimeType)]; len(list) > 0 {
		return list[0]
	}
	return nil
}

// Detect resolves the MIME type of a file.
func (r *Registry) Detect(name, declared string, content []byte) string {
	return Detect(name, declared, content)
}

// SupportedMIMETypes returns every registered MIME type, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byMIME))
	for mt := range r.byMIME {
		types = append(types, mt)
	}
	slices.Sort(types)
	return types
}

// normaliseMIME lowercases a MIME type and drops its parameters.
func normaliseMIME(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mimeType))
}
