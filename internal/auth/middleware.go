package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdeck-api/internal/domain"
	"taskdeck-api/internal/http/httperr"
	"taskdeck-api/internal/observability/logger"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
	userContextKey   contextKey = "user"
)

// UserLoader fetches the stored user behind a validated token. Team
// memberships come back as unresolved refs; permission gates resolve them
// on demand.
type UserLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// ExtractBearerToken pulls the token out of an Authorization header value.
// The realtime handshake shares this so both entry points agree on what a
// well-formed header looks like.
func ExtractBearerToken(header string) (string, *AuthError) {
	if header == "" {
		return "", NewAuthError(AuthFailureMissingAuthorization, "missing authorization header", nil)
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", NewAuthError(AuthFailureInvalidScheme, "authorization header must use the Bearer scheme", nil)
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", NewAuthError(AuthFailureInvalidScheme, "authorization header carries an empty token", nil)
	}
	return token, nil
}

// Authenticate validates the bearer token and loads the stored user into the
// request context. Authorization decisions always read the store, never the
// token: stale role claims in a token cannot widen access.
func Authenticate(verifier *Verifier, users UserLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := logger.GetLogger(ctx)

			tokenString, authErr := ExtractBearerToken(r.Header.Get("Authorization"))
			if authErr != nil {
				log.Warn(ctx, "authentication rejected",
					logger.Module("auth"),
					logger.Action("authenticate"),
					zap.String("reason", string(authErr.Reason)),
				)
				httperr.Unauthorized401(w, ctx, authCodeFor(authErr.Reason), authErr.Message)
				return
			}

			claims, err := verifier.Verify(tokenString)
			if err != nil {
				reason := AuthFailureUnknown
				if ae, ok := IsAuthError(err); ok {
					reason = ae.Reason
				}
				log.Warn(ctx, "token validation failed",
					logger.Module("auth"),
					logger.Action("authenticate"),
					zap.String("reason", string(reason)),
					zap.String("token_prefix", maskToken(tokenString)),
					zap.Error(err),
				)
				httperr.Unauthorized401(w, ctx, authCodeFor(reason), "invalid token")
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				log.Warn(ctx, "token carries malformed user id",
					logger.Module("auth"),
					logger.Action("authenticate"),
					zap.Error(err),
				)
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "invalid token")
				return
			}

			user, err := users.FindByID(ctx, userID)
			if err != nil {
				log.Warn(ctx, "token subject not found",
					logger.Module("auth"),
					logger.Action("authenticate"),
					zap.String("subject", claims.UserID),
					zap.Error(err),
				)
				httperr.Unauthorized401(w, ctx, httperr.ErrCodeInvalidToken, "invalid token")
				return
			}

			ctx = context.WithValue(ctx, claimsContextKey, claims)
			ctx = context.WithValue(ctx, userContextKey, user)
			ctx = logger.SetUserIDInContext(ctx, user.ID.String())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims retrieves the token claims from ctx.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

// GetUser retrieves the authenticated user from ctx.
func GetUser(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(userContextKey).(*domain.User)
	return user, ok
}

// SetUser stores user in ctx. Used by tests and the realtime handshake.
func SetUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

func authCodeFor(reason AuthFailureReason) string {
	switch reason {
	case AuthFailureMissingAuthorization:
		return httperr.ErrCodeMissingAuthorization
	case AuthFailureInvalidScheme:
		return httperr.ErrCodeInvalidScheme
	case AuthFailureInvalidSignature:
		return httperr.ErrCodeInvalidSignature
	case AuthFailureTokenExpired:
		return httperr.ErrCodeTokenExpired
	case AuthFailureInvalidIssuer:
		return httperr.ErrCodeInvalidIssuer
	case AuthFailureInvalidAudience:
		return httperr.ErrCodeInvalidAudience
	default:
		return httperr.ErrCodeInvalidToken
	}
}
