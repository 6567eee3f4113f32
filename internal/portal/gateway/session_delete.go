package gateway

import (
	"net/http"
)

// handleSessionDelete signs the member out.
//
//	@Summary		Sign out
//	@Description	Invalidates the remote session and clears the gateway's local one. The
//	@Description	local clear is unconditional, so this always answers 204, signed in or not.
//	@Tags			Session
//	@Success		204	"Session cleared"
//	@Router			/v1/session [delete].
func (rt *Router) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	rt.controller.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
