package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/custodia-labs/askdocs/internal/core/domain"
)

var (
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Italic(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	headingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	scoreStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
)

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// render applies style only when writing to a terminal.
func render(w io.Writer, style lipgloss.Style, text string) string {
	if !isTerminal(w) {
		return text
	}
	return style.Render(text)
}

// renderToken formats a streamed token for w.
func renderToken(w io.Writer, tok domain.Token) string {
	switch tok.Kind {
	case domain.TokenNotice:
		return render(w, noticeStyle, tok.Text)
	case domain.TokenError:
		return render(w, errorStyle, tok.Text)
	default:
		return tok.Text
	}
}
