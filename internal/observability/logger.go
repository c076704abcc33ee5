package observability

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type (
	correlationIDKey struct{}
	tenantIDKey      struct{}
)

// NewLogger builds the production JSON logger. Every entry carries the
// service name when one is given.
func NewLogger(level string, service string) (*zap.Logger, error) {
	parsedLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(parsedLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.DisableStacktrace = true

	opts := []zap.Option{zap.AddCaller()}
	if service = strings.TrimSpace(service); service != "" {
		opts = append(opts, zap.Fields(zap.String("service", service)))
	}

	logger, err := cfg.Build(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger, nil
}

func parseLevel(level string) (zapcore.Level, error) {
	var parsed zapcore.Level
	normalized := strings.ToLower(strings.TrimSpace(level))
	if normalized == "" {
		normalized = "info"
	}

	if err := parsed.UnmarshalText([]byte(normalized)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return parsed, nil
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return withValue(ctx, correlationIDKey{}, correlationID)
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, correlationIDKey{})
}

// WithTenantID scopes ctx to a tenant so dispatch logs can be filtered per
// tenant without threading the id through every call.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return withValue(ctx, tenantIDKey{}, tenantID)
}

func TenantIDFromContext(ctx context.Context) (string, bool) {
	return stringValue(ctx, tenantIDKey{})
}

// WithContextLogger returns logger annotated with the correlation and tenant
// ids carried by ctx.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}

	fields := make([]zap.Field, 0, 2)
	if correlationID, ok := CorrelationIDFromContext(ctx); ok {
		fields = append(fields, zap.String("correlationId", correlationID))
	}
	if tenantID, ok := TenantIDFromContext(ctx); ok {
		fields = append(fields, zap.String("tenantId", tenantID))
	}
	if len(fields) == 0 {
		return logger
	}

	return logger.With(fields...)
}

func withValue(ctx context.Context, key any, value string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, strings.TrimSpace(value))
}

func stringValue(ctx context.Context, key any) (string, bool) {
	if ctx == nil {
		return "", false
	}

	value, ok := ctx.Value(key).(string)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}
