package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/askdocs/internal/core/domain"
	"github.com/custodia-labs/askdocs/internal/core/ports/driven"
	"github.com/custodia-labs/askdocs/internal/logger"
)

// Fixed messages emitted in place of generated text.
const (
	NotFoundMessage         = "I couldn't find anything relevant to that question in the indexed documents."
	EmptyAnswerMessage      = "The model returned an empty answer."
	GenerationFailedMessage = "The language model failed while generating the answer."
)

// DirectTemperature is used for answers generated without retrieval.
const DirectTemperature = 0.5

// AnswerConfig configures an AnswerStreamer.
type AnswerConfig struct {
	// Temperature is used for grounded answers.
	Temperature float64

	// MaxTokens caps generated tokens. Zero means provider default.
	MaxTokens int
}

// AnswerStreamer generates answers and streams them token by token.
// Each stream is driven by its own goroutine that exits when the stream
// reaches a terminal state.
type AnswerStreamer struct {
	generator driven.Generator
	prompts   driven.PromptStore
	cfg       AnswerConfig
}

// NewAnswerStreamer creates an answer streamer. prompts may be nil, in
// which case the built-in templates are used.
func NewAnswerStreamer(generator driven.Generator, prompts driven.PromptStore, cfg AnswerConfig) *AnswerStreamer {
	return &AnswerStreamer{
		generator: generator,
		prompts:   prompts,
		cfg:       cfg,
	}
}

// Answer streams an answer to question grounded in window. An empty
// window yields NotFoundMessage without calling the generator.
func (a *AnswerStreamer) Answer(ctx context.Context, question string, window domain.ContextWindow) *domain.Stream {
	ctx, cancel := context.WithCancel(ctx)
	stream, w := domain.NewStream(uuid.NewString(), cancel)

	if window.IsEmpty() {
		go func() {
			if w.Send(ctx, domain.Token{Kind: domain.TokenNotice, Text: NotFoundMessage}) {
				w.Finish(domain.StreamCompleted, nil)
				return
			}
			w.Finish(domain.StreamCancelled, ctx.Err())
		}()
		return stream
	}

	prompt := RenderPrompt(a.template(driven.PromptAnswer, driven.DefaultAnswerPrompt), map[string]string{
		"context":  window.Text,
		"question": question,
	})
	go a.run(ctx, w, prompt, driven.GenerateOptions{
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	return stream
}

// Direct streams an answer to question without retrieved context.
func (a *AnswerStreamer) Direct(ctx context.Context, question string) *domain.Stream {
	ctx, cancel := context.WithCancel(ctx)
	stream, w := domain.NewStream(uuid.NewString(), cancel)

	prompt := RenderPrompt(a.template(driven.PromptDirect, driven.DefaultDirectPrompt), map[string]string{
		"question": question,
	})
	go a.run(ctx, w, prompt, driven.GenerateOptions{
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: DirectTemperature,
	})
	return stream
}

func (a *AnswerStreamer) run(ctx context.Context, w *domain.StreamWriter, prompt string, opts driven.GenerateOptions) {
	w.Start()

	if a.generator == nil {
		a.fail(ctx, w, domain.ErrLLMUnavailable)
		return
	}

	tokens, err := a.generator.StreamComplete(ctx, prompt, opts)
	if err != nil {
		if ctx.Err() != nil {
			w.Finish(domain.StreamCancelled, ctx.Err())
			return
		}
		a.fail(ctx, w, err)
		return
	}
	defer tokens.Close()

	for tokens.Next() {
		text := tokens.Token()
		if text == "" {
			continue
		}
		if !w.Send(ctx, domain.Token{Kind: domain.TokenText, Text: text}) {
			w.Finish(domain.StreamCancelled, ctx.Err())
			return
		}
	}

	if ctx.Err() != nil {
		w.Finish(domain.StreamCancelled, ctx.Err())
		return
	}
	if err := tokens.Err(); err != nil {
		a.fail(ctx, w, err)
		return
	}

	if w.Emitted() == 0 {
		if !w.Send(ctx, domain.Token{Kind: domain.TokenNotice, Text: EmptyAnswerMessage}) {
			w.Finish(domain.StreamCancelled, ctx.Err())
			return
		}
	}
	w.Finish(domain.StreamCompleted, nil)
}

// fail emits the single diagnostic token and moves the stream to Failed.
func (a *AnswerStreamer) fail(ctx context.Context, w *domain.StreamWriter, err error) {
	if !errors.Is(err, domain.ErrGenerationFailure) && !errors.Is(err, domain.ErrLLMUnavailable) {
		err = fmt.Errorf("%w: %w", domain.ErrGenerationFailure, err)
	}
	logger.Error("Answer generation failed: %v", err)

	if !w.Send(ctx, domain.Token{Kind: domain.TokenError, Text: GenerationFailedMessage}) {
		w.Finish(domain.StreamCancelled, ctx.Err())
		return
	}
	w.Finish(domain.StreamFailed, err)
}

func (a *AnswerStreamer) template(name, fallback string) string {
	if a.prompts == nil {
		return fallback
	}
	tmpl, err := a.prompts.Load(name)
	if err != nil || strings.TrimSpace(tmpl) == "" {
		if err != nil {
			logger.Warn("Using built-in %s prompt: %v", name, err)
		}
		return fallback
	}
	return tmpl
}

// RenderPrompt substitutes {name} placeholders in tmpl with vars.
// Unknown placeholders are left as they are.
func RenderPrompt(tmpl string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
