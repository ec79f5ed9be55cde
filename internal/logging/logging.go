package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. Dev gets a console writer, everything else
// JSON with timestamps and caller.
func New(env, service string) zerolog.Logger {
	return newWithWriter(env, service, os.Stdout)
}

func newWithWriter(env, service string, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if env == "dev" {
		return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Str("service", service).
			Logger()
	}

	return zerolog.New(w).
		With().
		Timestamp().
		Caller().
		Str("service", service).
		Logger()
}
