package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/observability/requestid"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RequestIDMiddleware reads the X-Request-Id header or generates a fresh id,
// injects it into the context, and echoes it on the response for client-side
// tracing.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = requestid.New()
		}

		ctx := requestid.SetRequestID(r.Context(), reqID)
		ctx = logger.SetRequestIDInContext(ctx, reqID)
		w.Header().Set("X-Request-Id", reqID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLoggingMiddleware logs a summary line per request at request end, so
// status and latency are known. Bodies and sensitive headers never reach the
// log.
func RequestLoggingMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := logger.SetLoggerInContext(r.Context(), log)
			ctx = logger.InitRootErrorContext(ctx)

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			log.Info(ctx, "http request completed",
				logger.Module("http"),
				logger.Action("request"),
				zap.String("method", r.Method),
				zap.String("route", getRoutePattern(r)),
				zap.String("path", r.URL.Path),
				zap.String("query", sanitizeQuery(r.URL.RawQuery)),
				zap.Int("status", wrapped.statusCode),
				zap.Float64("latency_ms", float64(time.Since(start).Milliseconds())),
				zap.String("remote_addr", sanitizeRemoteAddr(r.RemoteAddr)),
				zap.String("user_agent", sanitizeUserAgent(r.UserAgent())),
			)

			if wrapped.statusCode >= 500 {
				rootErr := logger.GetRootError(ctx)

				fields := []zap.Field{
					logger.Module("http"),
					logger.Action("http_error"),
					zap.Int("status", wrapped.statusCode),
					zap.String("method", r.Method),
					zap.String("route", getRoutePattern(r)),
					zap.String("kind", classifyError(rootErr)),
				}
				if rootErr != nil {
					fields = append(fields, zap.String("err", rootErr.Error()))

					var pgErr *pgconn.PgError
					if errors.As(rootErr, &pgErr) {
						fields = append(fields, zap.String("pgcode", pgErr.Code))
					}
				} else {
					fields = append(fields, zap.String("err", "internal server error (unspecified cause)"))
				}

				log.Error(ctx, "http_error", fields...)
			}
		})
	}
}

// RecoveryMiddleware converts panics into 500 responses with a stack trace in
// the log, preserving the process.
func RecoveryMiddleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					ctx := r.Context()
					recoveredErr := fmt.Errorf("panic: %v", err)
					logger.SetRootError(ctx, recoveredErr)

					log.Error(ctx, "panic_recovered",
						logger.Module("http"),
						logger.Action("panic_recovery"),
						zap.Any("panic", err),
						zap.String("stack", string(debug.Stack())),
						zap.String("method", r.Method),
						zap.String("path", r.URL.Path),
						zap.String("route", getRoutePattern(r)),
						zap.String("request_id", requestid.GetRequestID(ctx)),
					)

					httperr.InternalError(w, ctx)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	return rw.ResponseWriter.Write(b)
}

// sanitizeQuery truncates long query strings to prevent log bloat.
func sanitizeQuery(query string) string {
	const maxLen = 200
	if len(query) > maxLen {
		return query[:maxLen] + "..."
	}
	return query
}

// sanitizeRemoteAddr removes the port from a remote address.
func sanitizeRemoteAddr(addr string) string {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}

func sanitizeUserAgent(ua string) string {
	const maxLen = 100
	if len(ua) > maxLen {
		return ua[:maxLen] + "..."
	}
	return ua
}

// getRoutePattern extracts the chi route pattern from the request context.
func getRoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

// classifyError buckets a root error for the http_error log line.
func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "panic") {
		return "panic"
	}
	if strings.Contains(msg, "scan") {
		return "scan"
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return "db"
	}
	return "unknown"
}

// WithUserID is a helper middleware to inject user_id into context
// Used after authentication
func WithUserID(userID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.SetUserIDInContext(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
