package gateway

import (
	"net/http"

	"github.com/sendhisword/portal/pkg/httpx"
	"github.com/sendhisword/portal/pkg/slogx"
)

// handleSessionRefresh forces a token refresh ahead of the schedule.
//
//	@Summary		Refresh the session tokens
//	@Description	Exchanges the held refresh token immediately instead of waiting for the
//	@Description	periodic refresh. A failed exchange signs the session out.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	RefreshResponse			"Tokens rotated"
//	@Failure		401	{object}	authapi.ErrorResponse	"No session, or the exchange failed"
//	@Router			/v1/session/refresh [post].
func (rt *Router) handleSessionRefresh(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	pair, err := rt.controller.RefreshToken(r.Context())
	if err != nil {
		log.Warn("explicit refresh failed", "err", err)
		httpx.WriteError(w, http.StatusUnauthorized, "refresh_failed", "Session could not be refreshed")
		return
	}
	if pair == nil {
		httpx.WriteError(w, http.StatusUnauthorized, "no_session", "No session to refresh")
		return
	}

	resp := RefreshResponse{Refreshed: true}
	if snap := rt.controller.Snapshot(); snap.Session != nil && !snap.Session.ExpiresAt.IsZero() {
		expiresAt := snap.Session.ExpiresAt
		resp.ExpiresAt = &expiresAt
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}
