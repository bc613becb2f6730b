// Package logging configures the zerolog logger used by every binary.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the process-wide logger. It is a no-op until Setup runs.
var Logger = zerolog.Nop()

// Setup builds the process logger. level is a zerolog level name (debug, info, warn, error);
// unknown names fall back to info. format "json" writes one JSON object per line, anything
// else uses the human readable console writer.
func Setup(level, format string) zerolog.Logger {
	Logger = New(os.Stderr, level, format)
	return Logger
}

// New builds a logger writing to w without touching the package-level Logger.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
