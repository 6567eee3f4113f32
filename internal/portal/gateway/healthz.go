package gateway

import (
	"net/http"
	"time"

	"github.com/sendhisword/portal/pkg/httpx"
)

// handleHealthz is the liveness probe.
//
//	@Summary		Liveness Check Endpoint
//	@Description	Answers 200 whenever the process is up. Use /readyz for dependency health.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Router			/healthz [get].
func (rt *Router) handleHealthz(w http.ResponseWriter, r *http.Request) {
	httpx.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(rt.startTime).String(),
		Version: rt.buildVersion,
	})
}

// handleReadyz is the readiness probe.
//
//	@Summary		Readiness Check Endpoint
//	@Description	Checks the session store before reporting ready.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	HealthResponse
//	@Failure		503	{object}	HealthResponse	"A dependency is degraded"
//	@Router			/readyz [get].
func (rt *Router) handleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := &HealthChecks{Database: "ok"}
	status := "ok"
	code := http.StatusOK

	if err := rt.store.Ping(r.Context()); err != nil {
		checks.Database = "error: " + err.Error()
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	httpx.WriteJSON(w, code, HealthResponse{
		Status:  status,
		Uptime:  time.Since(rt.startTime).String(),
		Version: rt.buildVersion,
		Checks:  checks,
	})
}
