package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates HS256 access tokens against a single issuer and
// audience, with a configurable clock-skew leeway.
type Verifier struct {
	secret    []byte
	issuer    string
	audience  string
	clockSkew time.Duration
}

// NewVerifier creates a Verifier.
func NewVerifier(secret []byte, issuer, audience string, clockSkew time.Duration) *Verifier {
	return &Verifier{
		secret:    secret,
		issuer:    issuer,
		audience:  audience,
		clockSkew: clockSkew,
	}
}

// Verify parses and validates tokenString, returning its claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithLeeway(v.clockSkew),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, NewAuthError(AuthFailureTokenExpired, "token expired", err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, NewAuthError(AuthFailureInvalidSignature, "invalid signature", err)
		case errors.Is(err, jwt.ErrTokenInvalidIssuer):
			return nil, NewAuthError(AuthFailureInvalidIssuer, "invalid issuer", err)
		case errors.Is(err, jwt.ErrTokenInvalidAudience):
			return nil, NewAuthError(AuthFailureInvalidAudience, "invalid audience", err)
		default:
			return nil, NewAuthError(AuthFailureUnknown, "failed to parse token", err)
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, NewAuthError(AuthFailureUnknown, fmt.Sprintf("invalid token: valid=%v", token.Valid), nil)
	}

	if err := claims.Validate(); err != nil {
		return nil, NewAuthError(AuthFailureUnknown, "invalid claims", err)
	}

	return claims, nil
}
