package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/session"
	"github.com/sendhisword/portal/internal/portal/store"
	"github.com/sendhisword/portal/pkg/authapi"
	"github.com/sendhisword/portal/pkg/slogx"
)

// fakeProvider stands in for the ministry auth service.
func fakeProvider(t *testing.T, roles ...domain.Role) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req authapi.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if req.Password != "correct" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "invalid_credentials",
				"message": "Invalid credentials",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(authapi.TokenResponse{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    3600,
		})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(authapi.TokenResponse{
			AccessToken: "access-2",
			ExpiresIn:   3600,
		})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Profile{
			ID:    "user-1",
			Email: "pastor@church.org",
			Roles: roles,
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// newGateway wires a full in-process gateway: controller, memory store,
// fake auth provider and fake backend.
func newGateway(t *testing.T, roles ...domain.Role) (*Router, *httptest.Server) {
	t.Helper()

	provider := fakeProvider(t, roles...)

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":   r.URL.Path,
			"bearer": r.Header.Get("Authorization"),
		})
	}))
	t.Cleanup(backend.Close)

	ctrl := session.New(session.Config{
		API:   authapi.New(provider.URL),
		Store: store.NewMemory(),
	})
	t.Cleanup(func() { _ = ctrl.Close() })
	ctrl.Initialize(context.Background())

	backendURL, err := url.Parse(backend.URL)
	require.NoError(t, err)

	rt := NewRouter(ctrl, store.NewMemory(), backendURL, "test", nil, slogx.Discard())
	rt.ApplyRoutes()
	return rt, backend
}

func signIn(t *testing.T, rt *Router) {
	t.Helper()

	body := strings.NewReader(`{"email":"pastor@church.org","password":"correct"}`)
	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session", body))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSessionEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("sign in establishes a session", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t, domain.RoleMinister)

		signIn(t, rt)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Authenticated)
		require.Equal(t, "pastor@church.org", resp.Profile.Email)
		require.NotNil(t, resp.ExpiresAt)
	})

	t.Run("rejected credentials pass the provider message through", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t)

		body := strings.NewReader(`{"email":"pastor@church.org","password":"wrong"}`)
		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session", body))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "Invalid credentials")
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session", strings.NewReader("{")))
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("sign out always answers 204", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t, domain.RoleMinister)

		signIn(t, rt)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/session", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)

		// Signed out already; still 204
		rec = httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/session", nil))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/session", nil))
		var resp SessionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.False(t, resp.Authenticated)
	})

	t.Run("refresh rotates while signed in", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t, domain.RoleMinister)

		signIn(t, rt)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session/refresh", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp RefreshResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.True(t, resp.Refreshed)
	})

	t.Run("refresh without a session answers 401", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/session/refresh", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "no_session")
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	rt, _ := newGateway(t)

	rec := httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "ok", health.Status)
	require.Equal(t, "ok", health.Checks.Database)
}

func TestGuardedProxy(t *testing.T) {
	t.Parallel()

	t.Run("signed out is redirected to login", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portal/attendee/events", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		require.Contains(t, rec.Header().Get("Location"), "/auth/login?callbackUrl=")
	})

	t.Run("attendee area admits attendees", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t, domain.RoleAttendee)

		signIn(t, rt)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portal/attendee/events", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		var echoed map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &echoed))
		require.Equal(t, "/portal/attendee/events", echoed["path"])
		require.Equal(t, "Bearer access-1", echoed["bearer"], "gateway attaches its own token")
	})

	t.Run("admin area rejects a mere attendee", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t, domain.RoleAttendee)

		signIn(t, rt)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portal/admin/members", nil))
		require.Equal(t, http.StatusFound, rec.Code)
		require.Equal(t, session.UnauthorizedLocation, rec.Header().Get("Location"))
	})

	t.Run("minister area admits admins too", func(t *testing.T) {
		t.Parallel()
		rt, _ := newGateway(t, domain.RoleAdmin)

		signIn(t, rt)

		rec := httptest.NewRecorder()
		rt.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/portal/minister/roster", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}
