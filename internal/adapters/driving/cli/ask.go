package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

var (
	askLabel     string
	askK         int
	askThreshold float64
	askNoRAG     bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a question about your documents",
	Long: `Retrieves the passages most similar to the question and streams an answer
grounded in them. Press Ctrl-C to stop the answer.

With --no-rag the question goes straight to the language model.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: needs(needsAnswers),
	RunE:        runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askLabel, "label", "l", "", "label prefixed to the question before embedding")
	askCmd.Flags().IntVarP(&askK, "k", "k", 0, "number of passages to retrieve (default from config)")
	askCmd.Flags().Float64VarP(&askThreshold, "threshold", "t", 0, "minimum similarity score (default from config)")
	askCmd.Flags().BoolVar(&askNoRAG, "no-rag", false, "answer without retrieving context")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if queryService == nil {
		return errors.New("query service not configured")
	}

	question := strings.Join(args, " ")
	ctx := cmd.Context()

	var (
		stream *domain.Stream
		err    error
	)
	if askNoRAG {
		stream, err = queryService.AskDirect(ctx, question)
	} else {
		req := domain.QueryRequest{
			Question: question,
			Label:    askLabel,
			TopK:     askK,
		}
		if cmd.Flags().Changed("threshold") {
			threshold := askThreshold
			req.Threshold = &threshold
		}
		stream, err = queryService.Ask(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}

	return printStream(cmd.OutOrStdout(), stream)
}

// printStream writes tokens as they arrive and reports how the stream ended.
func printStream(out io.Writer, stream *domain.Stream) error {
	wroteText := false
	for tok := range stream.Tokens() {
		if tok.Kind != domain.TokenText && wroteText {
			fmt.Fprint(out, "\n\n")
		}
		wroteText = tok.Kind == domain.TokenText
		fmt.Fprint(out, renderToken(out, tok))
	}
	fmt.Fprintln(out)

	switch stream.Wait() {
	case domain.StreamCancelled:
		fmt.Fprintln(out, render(out, noticeStyle, "(answer cancelled)"))
		return nil
	case domain.StreamFailed:
		return stream.Err()
	default:
		return nil
	}
}
