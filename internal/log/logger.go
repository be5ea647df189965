package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

// Verbosity levels
const (
	LevelQuiet = iota // Default: only errors and warnings
	LevelInfo         // -v: refresh progress, cache state, counts
	LevelDebug        // -vv: API calls, per-repository results, timing
	LevelTrace        // -vvv: per-page and per-commit details
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

const slogLevelTrace = slog.Level(-8)

var (
	mu         sync.Mutex
	verbosity  int
	logger     *slog.Logger
	output     io.Writer
	inProgress bool
)

// Initialize sets up the global logger with the specified verbosity level
// using the text handler.
func Initialize(level int, w io.Writer) {
	InitializeFormat(level, w, FormatText)
}

// InitializeFormat sets up the global logger with the given verbosity and
// handler format. Unknown formats fall back to text.
func InitializeFormat(level int, w io.Writer, format string) {
	mu.Lock()
	defer mu.Unlock()

	verbosity = level
	output = w

	opts := &slog.HandlerOptions{Level: slogLevel(level)}
	var handler slog.Handler
	if format == FormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	logger = slog.New(handler)
}

func slogLevel(level int) slog.Level {
	switch {
	case level >= LevelTrace:
		return slogLevelTrace
	case level >= LevelDebug:
		return slog.LevelDebug
	case level >= LevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelWarn
	}
}

// Info logs at info level (-v)
func Info(msg string, args ...any) {
	if Verbosity() >= LevelInfo {
		emit(slog.LevelInfo, msg, args)
	}
}

// Debug logs at debug level (-vv)
func Debug(msg string, args ...any) {
	if Verbosity() >= LevelDebug {
		emit(slog.LevelDebug, msg, args)
	}
}

// Trace logs at trace level (-vvv)
func Trace(msg string, args ...any) {
	if Verbosity() >= LevelTrace {
		emit(slogLevelTrace, msg, args)
	}
}

// Warn logs at warn level (always visible)
func Warn(msg string, args ...any) {
	emit(slog.LevelWarn, msg, args)
}

// Error logs at error level (always visible)
func Error(msg string, args ...any) {
	emit(slog.LevelError, msg, args)
}

func emit(level slog.Level, msg string, args []any) {
	mu.Lock()
	clearProgress()
	l := logger
	mu.Unlock()
	l.Log(context.Background(), level, msg, args...)
}

// Progress prints a progress message with carriage return (no newline).
// Only shown at info level or higher.
func Progress(format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if verbosity >= LevelInfo {
		inProgress = true
		_, _ = fmt.Fprintf(output, "\r"+format, args...)
	}
}

// ProgressDone completes a progress line with "done" and newline
func ProgressDone() {
	mu.Lock()
	defer mu.Unlock()
	if verbosity >= LevelInfo && inProgress {
		_, _ = fmt.Fprintln(output, " done")
		inProgress = false
	}
}

// ProgressClear clears the current progress line
func ProgressClear() {
	mu.Lock()
	defer mu.Unlock()
	if inProgress {
		_, _ = fmt.Fprint(output, "\r\033[K")
		inProgress = false
	}
}

// clearProgress keeps log lines from overwriting a progress line.
// Callers hold mu.
func clearProgress() {
	if inProgress {
		_, _ = fmt.Fprintln(output)
		inProgress = false
	}
}

// IsInfo returns true if info-level logging is enabled
func IsInfo() bool {
	return Verbosity() >= LevelInfo
}

// IsDebug returns true if debug-level logging is enabled
func IsDebug() bool {
	return Verbosity() >= LevelDebug
}

// IsTrace returns true if trace-level logging is enabled
func IsTrace() bool {
	return Verbosity() >= LevelTrace
}

// Verbosity returns the current verbosity level
func Verbosity() int {
	mu.Lock()
	defer mu.Unlock()
	return verbosity
}

// Logger returns the underlying slog logger, for libraries that accept one.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

func init() {
	output = os.Stderr
	verbosity = LevelQuiet
	logger = slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
}
