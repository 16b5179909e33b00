package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"taskdeck-api/internal/domain"
)

// Issuer mints HS256 access tokens for authenticated users.
type Issuer struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
}

// NewIssuer creates an Issuer.
func NewIssuer(secret []byte, issuer, audience string, ttl time.Duration) *Issuer {
	return &Issuer{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
	}
}

// Issue mints a signed access token for user, returning the token and its
// expiry time.
func (i *Issuer) Issue(user *domain.User, now time.Time) (string, time.Time, error) {
	expiresAt := now.Add(i.ttl)

	roles := make([]string, 0, len(user.Roles))
	for _, r := range user.Roles {
		roles = append(roles, string(r))
	}

	claims := &Claims{
		UserID: user.ID.String(),
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt, nil
}
