package gateway

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sendhisword/portal/pkg/authapi"
	"github.com/sendhisword/portal/pkg/httpx"
	"github.com/sendhisword/portal/pkg/slogx"
)

// handleSessionCreate signs a member in.
//
//	@Summary		Sign in
//	@Description	Exchanges credentials for a gateway-held session. Tokens stay inside the
//	@Description	gateway; the response describes the session only.
//	@Tags			Session
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SessionCreateRequest	true	"Credentials"
//	@Success		201		{object}	SessionResponse			"Session established"
//	@Failure		400		{object}	authapi.ErrorResponse	"Malformed request"
//	@Failure		401		{object}	authapi.ErrorResponse	"Credentials rejected"
//	@Failure		502		{object}	authapi.ErrorResponse	"Auth service unreachable"
//	@Router			/v1/session [post].
func (rt *Router) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	log := slogx.FromContext(r.Context())

	var req SessionCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	if err := rt.controller.SignIn(r.Context(), req.Email, req.Password, req.RememberMe); err != nil {
		log.Warn("sign-in rejected", "email", req.Email, "err", err)
		httpx.WriteError(w, upstreamStatus(err), "sign_in_failed", authapi.Message(err))
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, sessionResponse(rt.controller.Snapshot()))
}

// upstreamStatus maps an auth service failure to the status the gateway
// reports. Credential rejections pass through as 401; anything else is the
// upstream's problem.
func upstreamStatus(err error) int {
	var apiErr *authapi.APIError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
			return apiErr.StatusCode
		}
	}
	return http.StatusBadGateway
}
