package authapi

import "github.com/sendhisword/portal/internal/portal/domain"

// LoginRequest is the credential-exchange payload.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe,omitempty"`
}

// TokenResponse is returned by login and refresh. RefreshToken may be empty
// on refresh when the provider does not rotate refresh tokens.
type TokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`

	// ExpiresIn is the access-token lifetime in seconds. Zero when the
	// provider leaves expiry to the token's own exp claim.
	ExpiresIn int `json:"expiresIn,omitempty"`
}

// LogoutRequest invalidates the remote session for a refresh token.
type LogoutRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Profile is the backend's user profile shape, re-exported so callers of
// this package don't need to import domain for the common case.
type Profile = domain.Profile

// ErrorResponse is the backend's JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// legacyErrorResponse covers backends that answer with {"detail": "..."}.
type legacyErrorResponse struct {
	Detail string `json:"detail"`
}
