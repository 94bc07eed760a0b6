// Package logger builds the process logger. INFO and WARN go to stdout,
// ERROR and above to stderr, and every level to an optional log file.
package logger

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options configure New.
type Options struct {
	// Level is the minimum level logged. Defaults to info.
	Level string
	// File, when set, receives every entry in addition to stdout/stderr.
	File string
	// Stdout and Stderr default to the process streams.
	Stdout io.Writer
	Stderr io.Writer
}

// New builds a logger and returns a cleanup function that syncs it and
// closes the log file.
func New(opts Options) (*zap.Logger, func(), error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, nil, fmt.Errorf("parsing log level %q: %w", opts.Level, err)
		}
	}

	stdout, stderr := opts.Stdout, opts.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encoder := zapcore.NewConsoleEncoder(encCfg)

	low := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l < zapcore.ErrorLevel
	})
	high := zap.LevelEnablerFunc(func(l zapcore.Level) bool {
		return l >= level && l >= zapcore.ErrorLevel
	})

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(stdout), low),
		zapcore.NewCore(encoder, zapcore.AddSync(stderr), high),
	}

	closeFile := func() {}
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		closeFile = func() { f.Close() }
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
	}

	log := zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	cleanup := func() {
		log.Sync()
		closeFile()
	}
	return log, cleanup, nil
}

// Named returns a child logger for component, or a no-op logger when base
// is nil.
func Named(base *zap.Logger, component string) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(component)
}
