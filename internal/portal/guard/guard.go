// Package guard decides whether the current session may enter a portal
// area. The decision itself is pure; Middleware adapts it to HTTP.
package guard

import (
	"net/url"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/session"
)

// Outcome classifies a guard decision.
type Outcome int

const (
	// Allow lets the request through.
	Allow Outcome = iota

	// Pending means the session is still being resolved; the caller should
	// hold the request rather than bounce a possibly signed-in user.
	Pending

	// RedirectToLogin sends an unauthenticated visitor to the sign-in
	// location, carrying the originally requested path so they can be
	// returned there afterwards.
	RedirectToLogin

	// RedirectUnauthorized sends an authenticated visitor without the
	// required role to the unauthorized location.
	RedirectUnauthorized
)

// Decision is the result of evaluating a requirement against a session
// state. Location is populated for the redirect outcomes.
type Decision struct {
	Outcome  Outcome
	Location string
}

// Requirement describes what a protected area demands. An empty Roles
// slice requires authentication only.
type Requirement struct {
	Roles []domain.Role
}

// Evaluate applies the guard ordering: resolution in progress wins over
// everything, authentication is checked before authorization, and only a
// fully qualified session is allowed through.
func Evaluate(state session.State, requestedPath string, req Requirement) Decision {
	if state.Loading {
		return Decision{Outcome: Pending}
	}

	if !state.IsAuthenticated() {
		loc := session.SignInLocation
		if requestedPath != "" {
			loc += "?callbackUrl=" + url.QueryEscape(requestedPath)
		}
		return Decision{Outcome: RedirectToLogin, Location: loc}
	}

	if !state.Session.HasRole(req.Roles...) {
		return Decision{Outcome: RedirectUnauthorized, Location: session.UnauthorizedLocation}
	}

	return Decision{Outcome: Allow}
}
