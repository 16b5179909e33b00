package logger

import (
	"context"
	"fmt"
	"strings"

	"taskdeck-api/internal/observability/requestid"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type contextKey string

const (
	loggerContextKey    contextKey = "logger"
	userIDContextKey    contextKey = "user_id"
	rootErrorContextKey contextKey = "root_err"
)

// rootErrorContainer holds the root cause of a failed request so the access
// log can report it even after handlers have wrapped or translated it.
type rootErrorContainer struct {
	err error
}

// Logger wraps zap.Logger and enforces the structured logging conventions:
// JSON output, RFC3339Nano timestamps, and module/action on every entry.
type Logger struct {
	zap         *zap.Logger
	serviceName string
}

// Field is a structured log field.
type Field = zapcore.Field

// New builds a Logger. level is one of "debug", "info", "warn", "error".
func New(serviceName string, level string) (*Logger, error) {
	if serviceName == "" {
		return nil, fmt.Errorf("serviceName is required")
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(parseLevel(level)),
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "timestamp",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "message",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
			EncodeDuration: zapcore.MillisDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
	}

	z, err := config.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	z = z.With(zap.String("service", serviceName))

	return &Logger{
		zap:         z,
		serviceName: serviceName,
	}, nil
}

// WithContext returns a logger pre-bound with the request-scoped fields
// (request_id, user_id) found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	fields := contextFields(ctx)
	if len(fields) == 0 {
		return l
	}
	return &Logger{
		zap:         l.zap.With(fields...),
		serviceName: l.serviceName,
	}
}

// Module returns the field identifying the emitting component.
func Module(name string) Field {
	return zap.String("module", name)
}

// Action returns the field identifying the operation being performed.
func Action(name string) Field {
	return zap.String("action", name)
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.DebugLevel, msg, fields...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.InfoLevel, msg, fields...)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.WarnLevel, msg, fields...)
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, zapcore.ErrorLevel, msg, fields...)
}

// log enforces the conventions: context fields are always attached, secret
// field values are redacted, and a missing module/action degrades to
// "unknown" instead of crashing.
func (l *Logger) log(ctx context.Context, level zapcore.Level, msg string, fields ...Field) {
	sanitized := sanitizeFields(fields)

	hasModule, hasAction := false, false
	for _, f := range sanitized {
		switch f.Key {
		case "module":
			hasModule = true
		case "action":
			hasAction = true
		}
	}
	if !hasModule {
		sanitized = append(sanitized, zap.String("module", "unknown"))
	}
	if !hasAction {
		sanitized = append(sanitized, zap.String("action", "unknown"))
	}

	all := append(contextFields(ctx), sanitized...)

	switch level {
	case zapcore.DebugLevel:
		l.zap.Debug(msg, all...)
	case zapcore.InfoLevel:
		l.zap.Info(msg, all...)
	case zapcore.WarnLevel:
		l.zap.Warn(msg, all...)
	case zapcore.ErrorLevel:
		l.zap.Error(msg, all...)
	}
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func contextFields(ctx context.Context) []Field {
	fields := []Field{}
	if requestID := requestid.GetRequestID(ctx); requestID != "" {
		fields = append(fields, zap.String("request_id", requestID))
	}
	if userID := GetUserIDFromContext(ctx); userID != "" {
		fields = append(fields, zap.String("user_id", userID))
	}
	return fields
}

// sanitizeFields redacts credential material and PII so it never reaches the
// log sink, regardless of what a caller passes.
func sanitizeFields(fields []Field) []Field {
	forbiddenKeys := map[string]bool{
		"authorization": true,
		"token":         true,
		"password":      true,
		"password_hash": true,
		"secret":        true,
		"jwt":           true,
		"bearer":        true,
		"credential":    true,
		"database_url":  true,
		"redis_url":     true,
		"email":         true,
		"first_name":    true,
		"last_name":     true,
	}

	sanitized := make([]Field, 0, len(fields))
	for _, field := range fields {
		if forbiddenKeys[strings.ToLower(field.Key)] {
			sanitized = append(sanitized, zap.String(field.Key, "[REDACTED]"))
		} else {
			sanitized = append(sanitized, field)
		}
	}
	return sanitized
}

func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func GetUserIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(userIDContextKey).(string); ok {
		return id
	}
	return ""
}

func SetUserIDInContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

func SetRequestIDInContext(ctx context.Context, requestID string) context.Context {
	return requestid.SetRequestID(ctx, requestID)
}

// GetLogger retrieves the request logger from ctx, falling back to a fresh
// default logger when none was installed.
func GetLogger(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerContextKey).(*Logger); ok {
		return l
	}
	l, _ := New("taskdeck-api", "info")
	return l
}

// SetLoggerInContext stores the request logger in ctx.
func SetLoggerInContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, l)
}

// InitRootErrorContext prepares ctx with a container for the request's root
// cause error.
func InitRootErrorContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, rootErrorContextKey, &rootErrorContainer{})
}

// SetRootError records the root cause error for the current request.
func SetRootError(ctx context.Context, err error) {
	if c, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		c.err = err
	}
}

// GetRootError returns the recorded root cause error, if any.
func GetRootError(ctx context.Context) error {
	if c, ok := ctx.Value(rootErrorContextKey).(*rootErrorContainer); ok {
		return c.err
	}
	return nil
}
