// Package logger is the thin zap veneer shared by every pipeline component.
// Decisions, vetoes and fills are all logged through it; the level is
// adjustable through TIDEMARK_LOG_LEVEL without a rebuild.
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// levelEnvVar overrides the default info level ("debug", "warn", ...).
const levelEnvVar = "TIDEMARK_LOG_LEVEL"

// Logger wraps zap so call sites depend on one local type.
type Logger struct {
	*zap.Logger
}

// NewLogger builds the process logger: JSON to stdout with ISO 8601
// timestamps, errors to stderr, info level unless the environment says
// otherwise.
func NewLogger() (*Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(levelFromEnv())
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{Logger: zapLogger.Named("tidemark")}, nil
}

// NewNopLogger returns a logger that discards everything. Useful in tests.
func NewNopLogger() *Logger {
	return &Logger{Logger: zap.NewNop()}
}

func levelFromEnv() zapcore.Level {
	raw := os.Getenv(levelEnvVar)
	if raw == "" {
		return zapcore.InfoLevel
	}

	level, err := zapcore.ParseLevel(raw)
	if err != nil {
		// An unparseable override falls back to info rather than failing
		// the whole process over a typo.
		return zapcore.InfoLevel
	}

	return level
}

// Sync flushes buffered entries; safe on a nop logger.
func (l *Logger) Sync() error {
	if l.Logger == nil {
		return nil
	}

	return l.Logger.Sync()
}
