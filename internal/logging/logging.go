// Package logging builds the process logger.
package logging

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a production zap logger. LOG_LEVEL=debug|warn|error adjusts the
// level and LOG_FORMAT=console switches to the human-readable encoder.
func New() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	}
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "console" {
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	return cfg.Build()
}

// Must is New for process entry points; it falls back to a no-op logger
// rather than failing startup.
func Must() *zap.Logger {
	l, err := New()
	if err != nil {
		return zap.NewNop()
	}
	return l
}
