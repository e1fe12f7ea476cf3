// Package logger builds the process-wide zerolog logger.
package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level      string // trace, debug, info, warn, error, fatal, panic, disabled
	Format     string // json or console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

// New returns a logger plus a closer for file outputs (a no-op otherwise)
func New(cfg Config) (zerolog.Logger, func() error, error) {
	noop := func() error { return nil }

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return zerolog.Nop(), noop, fmt.Errorf("invalid log level: %w", err)
	}

	var output io.Writer
	closer := noop
	switch cfg.Output {
	case "", "stderr":
		output = os.Stderr
	case "stdout":
		output = os.Stdout
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return zerolog.Nop(), noop, fmt.Errorf("could not open log file: %w", err)
		}
		output = file
		closer = file.Close
	}

	return build(output, level, cfg), closer, nil
}

func build(output io.Writer, level zerolog.Level, cfg Config) zerolog.Logger {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: cfg.TimeFormat,
		}
	}

	return zerolog.New(output).
		Level(level).
		With().
		Timestamp().
		Logger()
}
