// Package gateway is the portal's HTTP surface: the session endpoints the
// sign-in shell talks to, health probes, and the role-guarded reverse
// proxies in front of the ministry backend.
package gateway

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/sendhisword/portal/api/portal" // Swagger docs
	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/guard"
	"github.com/sendhisword/portal/internal/portal/session"
	"github.com/sendhisword/portal/internal/portal/store"
	"github.com/sendhisword/portal/pkg/httpx"
	"github.com/sendhisword/portal/pkg/slogx"
)

// Router holds shared dependencies for the gateway handlers.
type Router struct {
	Mux chi.Router

	controller   *session.Controller
	store        store.Store
	backend      *url.URL
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	allowedOrigins []string
}

// NewRouter builds the gateway router. backend is the upstream the guarded
// portal areas proxy to; it may be nil when the gateway runs session-only.
func NewRouter(
	controller *session.Controller,
	st store.Store,
	backend *url.URL,
	buildVersion string,
	allowedOrigins []string,
	logger *slog.Logger,
) *Router {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Router{
		Mux:            chi.NewRouter(),
		controller:     controller,
		store:          st,
		backend:        backend,
		buildVersion:   buildVersion,
		startTime:      time.Now(),
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

// ApplyRoutes mounts every endpoint on the router.
//
//	@title			Portal Session Gateway API
//	@version		0.1.0
//	@description	Session lifecycle and role-guarded access for the church ministry portal.
//	@description
//	@description	The gateway signs members in against the ministry auth service, keeps the
//	@description	access token fresh, and fronts the protected portal areas with role checks.
//
//	@license.name	MIT
//	@license.url	https://opensource.org/licenses/MIT
//
//	@host		localhost:8080
//	@BasePath	/
//
//	@schemes	http https
func (r *Router) ApplyRoutes() {
	r.Mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   r.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           60 * 15,
	}))
	r.Mux.Use(slogx.HTTPMiddleware(r.logger))

	r.Mux.Route("/v1/session", func(rr chi.Router) {
		// Sign-in carries credentials; rate limit it hard.
		rr.With(httpx.RateLimitByIP(httpx.StrictLimit)).
			Post("/", r.handleSessionCreate)

		rr.With(httpx.RateLimitByIP(httpx.PublicLimit)).
			Get("/", r.handleSessionGet)

		rr.With(httpx.RateLimitByIP(httpx.ModerateLimit)).
			Delete("/", r.handleSessionDelete)

		rr.With(httpx.RateLimitByIP(httpx.ModerateLimit)).
			Post("/refresh", r.handleSessionRefresh)
	})

	r.Mux.Get("/healthz", r.handleHealthz)
	r.Mux.Get("/readyz", r.handleReadyz)

	r.Mux.Get("/swagger/*", httpSwagger.Handler())

	if r.backend != nil {
		proxy := r.proxyHandler()

		r.Mux.Route("/portal", func(rr chi.Router) {
			rr.With(guard.RequireRoles(r.controller, domain.RoleAdmin)).
				Handle("/admin/*", proxy)

			rr.With(guard.RequireRoles(r.controller, domain.RoleAdmin, domain.RoleMinister)).
				Handle("/minister/*", proxy)

			rr.With(guard.RequireRoles(r.controller,
				domain.RoleAdmin, domain.RoleMinister, domain.RoleAttendee)).
				Handle("/attendee/*", proxy)
		})
	}
}

// ServeHTTP implements http.Handler.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.Mux.ServeHTTP(w, req)
}
