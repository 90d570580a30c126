package logger

import (
	"bytes"
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a JSON logger tagged with the instance name. Unknown levels
// fall back to info; config validation rejects them before we get here.
func New(w io.Writer, instance, level string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Str("instance", instance).
		Logger()
}

// JSONLogger adapts the standard library logger to the structured stream,
// so log.Printf calls and http.Server errors end up as JSON lines too.
type JSONLogger struct {
	Logger zerolog.Logger
}

func (l *JSONLogger) Write(p []byte) (n int, err error) {
	l.Logger.Info().Msg(string(bytes.TrimRight(p, "\n")))
	return len(p), nil
}
