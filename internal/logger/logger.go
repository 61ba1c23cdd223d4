// Package logger provides the process-wide zerolog setup.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/rs/zerolog"
	zpkgerrors "github.com/rs/zerolog/pkgerrors"
)

type stackTracer interface{ StackTrace() pkgerrors.StackTrace }

// New returns a JSON logger on stdout tagged with service. Use .Stack() on
// error events to include stacks.
func New(service string) zerolog.Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewConsole is New with human-readable output on stderr, for the CLI.
func NewConsole(service string) zerolog.Logger {
	return NewWithWriter(service, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
}

func NewWithWriter(service string, w io.Writer) zerolog.Logger {
	zerolog.ErrorStackMarshaler = func(err error) interface{} {
		if _, ok := err.(stackTracer); !ok {
			err = pkgerrors.WithStack(err)
		}
		return zpkgerrors.MarshalStack(err)
	}

	return zerolog.New(w).
		Level(levelFromEnv()).
		With().
		Str("service", service).
		Timestamp().
		Logger()
}

func levelFromEnv() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
