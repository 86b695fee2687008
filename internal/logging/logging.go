// Package logging provides the structured logger used throughout
// fixiebatch. It wraps github.com/ternarybob/arbor (itself built on
// github.com/phuslu/log's chained Info()/Str()/Msg() event API) so call
// sites get a consistent fluent logging interface regardless of which
// writer backs it.
package logging

import (
	"os"

	"github.com/phuslu/log"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/arbor/models"
	"github.com/ternarybob/arbor/writers"
)

// Logger wraps arbor.ILogger to provide a consistent interface across the
// control plane, the runner subprocess, and the CLI.
type Logger struct {
	arbor.ILogger
}

// discardWriter implements writers.IWriter and discards all output. Used by
// NewSilent so tests don't spam stderr with runner/admission chatter.
type discardWriter struct{}

func (w *discardWriter) Write(p []byte) (int, error)           { return len(p), nil }
func (w *discardWriter) WithLevel(_ log.Level) writers.IWriter { return w }
func (w *discardWriter) GetFilePath() string                   { return "" }
func (w *discardWriter) Close() error                          { return nil }

// New creates a logger at the given level ("debug", "info", "warn", "error")
// writing to stderr, plus an in-memory writer so a caller can retrieve
// recent log lines for diagnostics without re-reading a log file.
func New(level string) *Logger {
	l := arbor.NewLogger().
		WithConsoleWriter(models.WriterConfiguration{
			Type:       models.LogWriterTypeConsole,
			Writer:     os.Stderr,
			TimeFormat: "2006-01-02T15:04:05Z07:00",
		}).
		WithMemoryWriter(models.WriterConfiguration{
			Type: models.LogWriterTypeMemory,
		}).
		WithLevelFromString(level)

	return &Logger{ILogger: l}
}

// NewSilent creates a logger that discards all output. runner.New falls
// back to it when no logger is supplied, as the runner tests do.
func NewSilent() *Logger {
	l := arbor.NewLogger().WithWriters([]writers.IWriter{&discardWriter{}})
	return &Logger{ILogger: l}
}

// WithCorrelationId returns a new Logger tagged with id, so every log line
// emitted during a single spawn/cancel/query call can be grepped together.
func (l *Logger) WithCorrelationId(id string) *Logger {
	return &Logger{ILogger: l.ILogger.WithCorrelationId(id)}
}
