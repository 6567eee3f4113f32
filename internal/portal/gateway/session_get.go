package gateway

import (
	"net/http"

	"github.com/sendhisword/portal/pkg/httpx"
)

// handleSessionGet reports the current session.
//
//	@Summary		Current session
//	@Description	Returns whether a session is established, the member profile and the
//	@Description	access-token expiry. Always 200; "signed out" is a valid answer.
//	@Tags			Session
//	@Produce		json
//	@Success		200	{object}	SessionResponse
//	@Router			/v1/session [get].
func (rt *Router) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(rt.controller.Snapshot()))
}
