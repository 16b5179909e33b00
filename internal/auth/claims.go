package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// Claims are the JWT claims carried by access tokens. Roles are embedded so
// the realtime handshake can classify a connection without a user lookup;
// permission checks always go back to the stored user.
type Claims struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Validate performs additional validation on custom claims.
func (c *Claims) Validate() error {
	if c.UserID == "" {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// IsAdmin reports whether the token carries the admin role.
func (c *Claims) IsAdmin() bool {
	for _, r := range c.Roles {
		if r == "admin" {
			return true
		}
	}
	return false
}
