package guard

import (
	"net/http"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/session"
	"github.com/sendhisword/portal/pkg/httpx"
)

// Source supplies the session state a guard evaluates against. The session
// Controller satisfies it.
type Source interface {
	Snapshot() session.State
}

// Middleware guards a route subtree with the given requirement. Pending
// resolution answers 503 with a short Retry-After instead of bouncing the
// visitor; the redirect outcomes answer 302.
func Middleware(src Source, req Requirement) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := Evaluate(src.Snapshot(), r.URL.Path, req)

			switch decision.Outcome {
			case Allow:
				next.ServeHTTP(w, r)
			case Pending:
				w.Header().Set("Retry-After", "1")
				httpx.WriteError(w, http.StatusServiceUnavailable,
					"session_pending", "Session is still being resolved")
			case RedirectToLogin, RedirectUnauthorized:
				http.Redirect(w, r, decision.Location, http.StatusFound)
			}
		})
	}
}

// RequireRoles is shorthand for a role-bearing requirement.
func RequireRoles(src Source, roles ...domain.Role) httpx.Middleware {
	return Middleware(src, Requirement{Roles: roles})
}

// RequireAuth guards with authentication only.
func RequireAuth(src Source) httpx.Middleware {
	return Middleware(src, Requirement{})
}
