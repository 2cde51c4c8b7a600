package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. A nil writer logs to stderr.
func New(level string, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	return zerolog.New(out).
		Level(ParseLevel(level)).
		With().
		Timestamp().
		Str("service", "civicmap").
		Logger()
}

// ParseLevel maps a textual level to zerolog, defaulting to info
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled", "off":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}
