// Package jwtx reads claims out of access tokens without verifying them.
//
// The portal is a token consumer, not an issuer: signature verification is
// the backend's job. Claims decoded here are only used for local scheduling
// decisions (when to refresh), never for authorization.
package jwtx

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access-token claims the portal cares about. Additive only,
// the backend may carry more.
type Claims struct {
	jwt.RegisteredClaims

	// Email of the authenticated user
	Email string `json:"email,omitempty"`

	// Roles assigned to the user, e.g. ["ADMIN"]
	Roles []string `json:"roles,omitempty"`
}

// DecodeUnverified parses a JWT without checking its signature.
func DecodeUnverified(token string) (Claims, error) {
	var claims Claims

	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, &claims); err != nil {
		return Claims{}, fmt.Errorf("jwtx: parse token: %w", err)
	}

	return claims, nil
}

// Expiry returns the token's exp claim, or the zero time when the token is
// opaque (not a JWT) or carries no expiry.
func Expiry(token string) time.Time {
	claims, err := DecodeUnverified(token)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
