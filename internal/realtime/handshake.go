// Package realtime authorizes realtime subscription handshakes. The
// transport itself (connection management, relaying redis pub/sub messages)
// lives at the edge: a relay process subscribes to the channels published by
// internal/events, calls Authorize on every incoming handshake, and uses
// Identity.Channels to decide what each connection may receive. This package
// only decides who may subscribe to what.
package realtime

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"taskdeck-api/internal/auth"
	"taskdeck-api/internal/events"
	"taskdeck-api/internal/observability/logger"
)

// HandshakeRequest carries the credentials a client presents when opening a
// realtime connection. Token is the connection payload's auth token;
// AuthorizationHeader is the HTTP header fallback.
type HandshakeRequest struct {
	Token               string
	AuthorizationHeader string
}

// Identity is the authenticated identity attached to an accepted connection.
type Identity struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Channels lists the channels this identity may subscribe to.
func (id Identity) Channels() []string {
	channels := []string{events.UserChannel(id.UserID)}
	if id.IsAdmin {
		channels = append(channels, events.AdminChannel)
	}
	return channels
}

// Authorizer gates realtime handshakes with the same token validation as the
// HTTP middleware. Like the HTTP side, authorization reads the store, never
// the token: the admin flag comes from the stored user's roles, and a token
// whose subject no longer exists fails the handshake.
type Authorizer struct {
	verifier *auth.Verifier
	users    auth.UserLoader
	log      *logger.Logger
}

// NewAuthorizer creates an Authorizer.
func NewAuthorizer(verifier *auth.Verifier, users auth.UserLoader, log *logger.Logger) *Authorizer {
	return &Authorizer{verifier: verifier, users: users, log: log}
}

// Authorize validates the handshake credentials and returns the connection
// identity. It must run before any subscription is established: a rejected
// handshake never sees a single event. The auth payload token wins over the
// header when both are present.
func (a *Authorizer) Authorize(ctx context.Context, req HandshakeRequest) (Identity, error) {
	tokenString := req.Token
	if tokenString == "" {
		extracted, authErr := auth.ExtractBearerToken(req.AuthorizationHeader)
		if authErr != nil {
			a.log.Warn(ctx, "handshake rejected",
				logger.Module("realtime"),
				logger.Action("handshake"),
				zap.String("reason", string(authErr.Reason)),
			)
			return Identity{}, authErr
		}
		tokenString = extracted
	}

	claims, err := a.verifier.Verify(tokenString)
	if err != nil {
		reason := auth.AuthFailureUnknown
		if ae, ok := auth.IsAuthError(err); ok {
			reason = ae.Reason
		}
		a.log.Warn(ctx, "handshake token rejected",
			logger.Module("realtime"),
			logger.Action("handshake"),
			zap.String("reason", string(reason)),
		)
		return Identity{}, err
	}

	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Identity{}, auth.NewAuthError(auth.AuthFailureUnknown, "token carries malformed user id", err)
	}

	user, err := a.users.FindByID(ctx, userID)
	if err != nil {
		a.log.Warn(ctx, "handshake subject not found",
			logger.Module("realtime"),
			logger.Action("handshake"),
			zap.String("subject", claims.UserID),
			zap.Error(err),
		)
		return Identity{}, auth.NewAuthError(auth.AuthFailureUserNotFound, "unknown user", err)
	}

	return Identity{UserID: user.ID, IsAdmin: user.IsAdmin()}, nil
}
