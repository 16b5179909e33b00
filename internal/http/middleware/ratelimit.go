package middleware

import (
	"fmt"
	"net/http"
	"time"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
	"taskdeck-api/internal/ratelimit"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RateLimitMiddleware enforces rate limiting per authenticated user. It must
// run after the authentication middleware.
func RateLimitMiddleware(limiter *ratelimit.RedisRateLimiter, limitPerMin int) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			user, ok := auth.GetUser(ctx)
			if !ok {
				log.Error(ctx, "authenticated user not found in context for rate limiting",
					logger.Module("ratelimit"),
					logger.Action("allow_request"),
				)
				httperr.InternalError(w, ctx)
				return
			}
			userID := user.ID.String()

			allowed, remaining, err := limiter.AllowRequest(ctx, userID, limitPerMin, 60)
			if err != nil {
				log.Error(ctx, "rate limit check failed",
					logger.Module("ratelimit"),
					logger.Action("allow_request"),
					zap.Error(err),
				)
				httperr.InternalError(w, ctx)
				return
			}

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limitPerMin))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", time.Now().Add(60*time.Second).Unix()))

			if !allowed {
				span := trace.SpanFromContext(ctx)
				span.AddEvent("rate_limit_exceeded")

				log.Warn(ctx, "rate limit exceeded",
					logger.Module("ratelimit"),
					logger.Action("allow_request"),
					zap.String("user_id", userID),
					zap.Int("limit", limitPerMin),
				)

				w.Header().Set("Retry-After", "60")
				httperr.WriteError(w, ctx, http.StatusTooManyRequests, "RATE_LIMITED", "rate limit exceeded, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
