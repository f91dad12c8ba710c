// Package logger provides levelled logging for askdocs.
// When verbose mode is enabled via the --verbose flag, debug messages
// are printed to stderr to help users follow ingestion and retrieval.
// Warnings and errors are always printed.
package logger

import (
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	mu      sync.RWMutex
	verbose bool
	jsonOut bool
	output  io.Writer = os.Stderr
	base              = newLogger(os.Stderr, false, false)
)

func newLogger(w io.Writer, verbose, asJSON bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: asJSON,
		Level:           log.WarnLevel,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	}
	if asJSON {
		l.SetFormatter(log.JSONFormatter)
	}
	return l
}

func rebuild() {
	base = newLogger(output, verbose, jsonOut)
}

// SetVerbose enables or disables verbose logging.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
	rebuild()
}

// IsVerbose returns true if verbose mode is enabled.
func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return verbose
}

// SetJSON switches to JSON output with timestamps. Used by long-running servers.
func SetJSON(v bool) {
	mu.Lock()
	defer mu.Unlock()
	jsonOut = v
	rebuild()
}

// SetOutput sets the output writer for logs.
// Defaults to os.Stderr. Useful for testing.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
	rebuild()
}

// Slog returns a structured logger sharing the current output and level.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return slog.New(base)
}

// StandardLog returns a standard library logger writing at error level.
// Used for http.Server.ErrorLog.
func StandardLog() *stdlog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base.StandardLog(log.StandardLogOptions{ForceLevel: log.ErrorLevel})
}

// Debug prints a message if verbose mode is enabled.
func Debug(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Debug(fmt.Sprintf(format, args...))
}

// Section prints a section header if verbose mode is enabled.
func Section(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose && !jsonOut {
		fmt.Fprintf(output, "\n=== %s ===\n", fmt.Sprintf(format, args...))
	}
}

// Info prints an informational message if verbose mode is enabled.
func Info(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if verbose {
		base.Info(fmt.Sprintf(format, args...))
	}
}

// Warn prints a warning message.
func Warn(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Warn(fmt.Sprintf(format, args...))
}

// Error prints an error message.
func Error(format string, args ...any) {
	mu.RLock()
	defer mu.RUnlock()
	base.Error(fmt.Sprintf(format, args...))
}
