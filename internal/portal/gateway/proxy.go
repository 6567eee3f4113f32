package gateway

import (
	"net/http"
	"net/http/httputil"

	"github.com/sendhisword/portal/pkg/httpx"
)

// proxyHandler fronts the ministry backend. The guard middleware has
// already admitted the request by the time it reaches here; the proxy's
// job is to attach the gateway-held access token so the backend sees an
// authenticated call.
func (rt *Router) proxyHandler() http.Handler {
	proxy := httputil.NewSingleHostReverseProxy(rt.backend)

	director := proxy.Director
	proxy.Director = func(req *http.Request) {
		director(req)

		// Strip any credentials the caller tried to smuggle through, then
		// attach ours.
		req.Header.Del("Authorization")
		if snap := rt.controller.Snapshot(); snap.Session != nil {
			req.Header.Set("Authorization", "Bearer "+snap.Session.AccessToken)
		}
	}

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		rt.logger.Error("backend proxy failed", "path", r.URL.Path, "err", err)
		httpx.WriteError(w, http.StatusBadGateway, "bad_gateway", "Ministry backend is unreachable")
	}

	return proxy
}
