package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger returns a zap logger writing to stderr. When debug is true, uses development config
// (human-readable, debug level); otherwise uses production config (JSON, info level, ISO8601 times).
func NewLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// MustLogger is like NewLogger but falls back to a no-op logger when construction fails.
func MustLogger(debug bool) *zap.Logger {
	l, err := NewLogger(debug)
	if err != nil {
		return zap.NewNop()
	}
	return l
}
