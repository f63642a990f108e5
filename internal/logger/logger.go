// Package logger builds the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ekisa-team/melo-api/internal/env"
)

const (
	defaultMaxSizeMB  = 50
	defaultMaxBackups = 5
	defaultMaxAgeDays = 28
)

type options struct {
	output    io.Writer
	logFile   string
	level     slog.Leveler
	logToFile bool
}

// Option configures the logger.
type Option func(*options)

// WithLogToFile enables or disables the rotating JSON file sink.
func WithLogToFile(enabled bool) Option {
	return func(o *options) {
		o.logToFile = enabled
	}
}

// WithLogFile sets the path of the rotating log file.
func WithLogFile(path string) Option {
	return func(o *options) {
		o.logFile = path
	}
}

// WithLevel overrides the level derived from the environment.
func WithLevel(level slog.Leveler) Option {
	return func(o *options) {
		o.level = level
	}
}

// WithOutput replaces the console writer (stderr by default).
func WithOutput(w io.Writer) Option {
	return func(o *options) {
		o.output = w
	}
}

// New creates a logger for the given environment.
// Development logs are colored text, production logs are JSON.
func New(environment env.Environment, opts ...Option) *slog.Logger {
	o := &options{
		output:  os.Stderr,
		logFile: "logs/melo-api.log",
		level:   levelFor(environment),
	}
	for _, opt := range opts {
		opt(o)
	}

	var console slog.Handler
	switch environment {
	case env.Production:
		console = slog.NewJSONHandler(o.output, &slog.HandlerOptions{Level: o.level})
	default:
		console = tint.NewHandler(o.output, &tint.Options{
			Level:      o.level,
			TimeFormat: time.Kitchen,
		})
	}

	if !o.logToFile || o.logFile == "" {
		return slog.New(console)
	}

	file := &lumberjack.Logger{
		Filename:   o.logFile,
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		Compress:   true,
	}

	return slog.New(newFanout(
		console,
		slog.NewJSONHandler(file, &slog.HandlerOptions{Level: o.level}),
	))
}

func levelFor(environment env.Environment) slog.Level {
	switch environment {
	case env.Production:
		return slog.LevelInfo
	case env.Test:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}
