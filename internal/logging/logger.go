package logging

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a structured logger. Verbose switches to a
// human-readable development encoder at debug level.
func NewLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

// NewInvocationID returns an identifier for one detection or classification run.
func NewInvocationID() string {
	return uuid.NewString()
}

// WithOperation enriches the logger with operation and invocation identifiers.
func WithOperation(logger *zap.Logger, operation, invocationID string) *zap.Logger {
	fields := []zap.Field{zap.String("operation", operation)}
	if invocationID != "" {
		fields = append(fields, zap.String("invocation_id", invocationID))
	}
	return logger.With(fields...)
}
