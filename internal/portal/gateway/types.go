package gateway

import (
	"time"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/session"
)

// SessionCreateRequest is the sign-in payload.
type SessionCreateRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// SessionResponse describes the gateway's current session to the shell.
// Tokens never appear here; the gateway holds them on the caller's behalf.
type SessionResponse struct {
	Authenticated bool            `json:"authenticated"`
	Loading       bool            `json:"loading"`
	Profile       *domain.Profile `json:"profile,omitempty"`
	ExpiresAt     *time.Time      `json:"expiresAt,omitempty"`
	Error         string          `json:"error,omitempty"`
}

// RefreshResponse reports the outcome of an explicit token refresh.
type RefreshResponse struct {
	Refreshed bool       `json:"refreshed"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// HealthChecks itemizes dependency health for the readiness probe.
type HealthChecks struct {
	Database string `json:"database"`
}

// HealthResponse is the health/readiness probe body.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

func sessionResponse(state session.State) SessionResponse {
	resp := SessionResponse{
		Authenticated: state.IsAuthenticated(),
		Loading:       state.Loading,
		Error:         state.Err,
	}
	if state.Session != nil {
		profile := state.Session.Profile
		resp.Profile = &profile
		if !state.Session.ExpiresAt.IsZero() {
			expiresAt := state.Session.ExpiresAt
			resp.ExpiresAt = &expiresAt
		}
	}
	return resp
}
