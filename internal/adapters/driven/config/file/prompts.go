package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// promptSpec describes a known template: its built-in text and the
// placeholders an edited copy must keep.
type promptSpec struct {
	fallback string
	required []string
}

var prompts = map[string]promptSpec{
	driven.PromptAnswer: {
		fallback: driven.DefaultAnswerPrompt,
		required: []string{"{context}", "{question}"},
	},
	driven.PromptDirect: {
		fallback: driven.DefaultDirectPrompt,
		required: []string{"{question}"},
	},
}

const promptsReadme = "# askdocs prompts\n\n" +
	"Templates used when answering questions. Edit a file to change the wording;\n" +
	"changes are picked up by the next command.\n\n" +
	"- `answer.txt` - grounded answer. Placeholders: `{context}`, `{question}`\n" +
	"- `direct.txt` - answer without retrieval. Placeholder: `{question}`\n\n" +
	"A file missing one of its placeholders is ignored. Delete a file to restore its default.\n"

// PromptStore serves generator templates from user-editable files in a
// directory, seeded with the built-in templates on first Load.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.RWMutex
	cache map[string]string
}

// NewPromptStore creates a prompt store over dir. An empty dir means
// ~/.askdocs/prompts. Nothing is read or written until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".askdocs", "prompts")
	}
	return &PromptStore{
		dir:   dir,
		cache: make(map[string]string),
	}, nil
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.dir
}

// Load returns the template called name. Unknown names are an error; a
// missing, empty or incomplete file yields the built-in template.
func (s *PromptStore) Load(name string) (string, error) {
	spec, ok := prompts[name]
	if !ok {
		return "", fmt.Errorf("unknown prompt %q", name)
	}

	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		logger.Debug("prompt store: %v, using default %s prompt", s.seedErr, name)
		return spec.fallback, nil
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok {
		return cached, nil
	}

	tmpl := s.read(name, spec)

	s.mu.Lock()
	defer s.mu.Unlock()
	if cached, ok := s.cache[name]; ok {
		return cached, nil
	}
	s.cache[name] = tmpl
	return tmpl, nil
}

// Reload drops cached templates so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

// read loads name from disk, falling back to the built-in template.
func (s *PromptStore) read(name string, spec promptSpec) string {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return spec.fallback
	}
	tmpl := strings.TrimSpace(string(data))
	if tmpl == "" {
		return spec.fallback
	}
	for _, p := range spec.required {
		if !strings.Contains(tmpl, p) {
			logger.Warn("%s is missing %s, using the default %s prompt", s.path(name), p, name)
			return spec.fallback
		}
	}
	return tmpl
}

// seed creates the directory, any missing template files and the README.
// Existing files are never overwritten.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	files := map[string]string{"README.md": promptsReadme}
	for name, spec := range prompts {
		files[name+".txt"] = spec.fallback
	}
	for file, content := range files {
		if err := writeIfMissing(filepath.Join(s.dir, file), content); err != nil {
			s.seedErr = fmt.Errorf("create %s: %w", file, err)
			return
		}
	}
}

func writeIfMissing(path, content string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, fs.ErrExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
