package domain

import "time"

// Profile is the user record returned by the backend's /auth/me endpoint.
type Profile struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	AvatarURL       string    `json:"avatarUrl,omitempty"`
	PhoneNumber     string    `json:"phoneNumber,omitempty"`
	Roles           []Role    `json:"roles"`
	IsEmailVerified bool      `json:"isEmailVerified"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Session is the client's record of an authenticated identity. A Session is
// either fully populated or absent entirely; no code path constructs a
// partial one.
type Session struct {
	Profile Profile

	AccessToken  string
	RefreshToken string

	// ExpiresAt is when the access token stops being usable. Zero when the
	// provider did not report an expiry and the token carries no exp claim.
	ExpiresAt time.Time
}

// HasRole reports whether the session's role set intersects want.
func (s *Session) HasRole(want ...Role) bool {
	if s == nil {
		return false
	}
	return AnyRole(s.Profile.Roles, want)
}

// Expired reports whether the access token is past its known expiry at now.
// Sessions without a known expiry never report expired; the remote service
// is the authority in that case.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
