package portal_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sendhisword/portal/internal/portal/domain"
	"github.com/sendhisword/portal/internal/portal/gateway"
	"github.com/sendhisword/portal/internal/portal/session"
	"github.com/sendhisword/portal/internal/portal/store/drivers/sqlite"
	"github.com/sendhisword/portal/pkg/authapi"
	"github.com/sendhisword/portal/pkg/sealbox"
	"github.com/sendhisword/portal/pkg/slogx"
)

// provider is a scriptable stand-in for the ministry auth service.
type provider struct {
	mu           sync.Mutex
	refreshCalls int
	refuseLogin  bool
	roles        []domain.Role

	srv *httptest.Server
}

func startProvider(t *testing.T, roles ...domain.Role) *provider {
	t.Helper()

	p := &provider{roles: roles}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		refuse := p.refuseLogin
		p.mu.Unlock()

		if refuse {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"error":   "invalid_credentials",
				"message": "Invalid credentials",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(authapi.TokenResponse{
			AccessToken:  "access-0",
			RefreshToken: "refresh-0",
			ExpiresIn:    3600,
		})
	})
	mux.HandleFunc("POST /auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		p.mu.Lock()
		p.refreshCalls++
		n := p.refreshCalls
		p.mu.Unlock()

		_ = json.NewEncoder(w).Encode(authapi.TokenResponse{
			AccessToken:  fmt.Sprintf("access-%d", n),
			RefreshToken: fmt.Sprintf("refresh-%d", n),
			ExpiresIn:    3600,
		})
	})
	mux.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /auth/me", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Profile{
			ID:    "user-1",
			Email: "pastor@church.org",
			Roles: p.roles,
		})
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

// env describes the durable parts of a gateway deployment so tests can
// restart the process-equivalent against the same files.
type env struct {
	dbFile   string
	keyFile  string
	signal   string
	provider *provider
	backend  *httptest.Server
}

func newEnv(t *testing.T, roles ...domain.Role) *env {
	t.Helper()

	dir := t.TempDir()
	keyFile := filepath.Join(dir, "seal.key")
	require.NoError(t, os.WriteFile(keyFile, []byte("e2e-seal-key-material"), 0o600))

	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"path":   r.URL.Path,
			"bearer": r.Header.Get("Authorization"),
		})
	}))
	t.Cleanup(backend.Close)

	return &env{
		dbFile:   filepath.Join(dir, "portal.db"),
		keyFile:  keyFile,
		signal:   filepath.Join(dir, "session.signal"),
		provider: startProvider(t, roles...),
		backend:  backend,
	}
}

// instance is one running gateway over the shared environment.
type instance struct {
	srv  *httptest.Server
	ctrl *session.Controller
	stop func()
}

// start brings up a gateway instance: sqlite store, file signal channel,
// controller and router, served over a real listener.
func (e *env) start(t *testing.T) *instance {
	t.Helper()

	box, ephemeral, err := sealbox.Open(e.keyFile)
	require.NoError(t, err)
	require.False(t, ephemeral, "the test key file must be used")

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", e.dbFile)
	db, err := sqlite.NewStore(dsn, box)
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations())

	channel := session.NewFileChannel(e.signal, 20*time.Millisecond)

	ctrl := session.New(session.Config{
		API:     authapi.New(e.provider.srv.URL),
		Store:   db,
		Channel: channel,
		Logger:  slogx.Discard(),
	})
	ctrl.Start()
	ctrl.Initialize(context.Background())

	backendURL, err := url.Parse(e.backend.URL)
	require.NoError(t, err)

	rt := gateway.NewRouter(ctrl, db, backendURL, "e2e", nil, slogx.Discard())
	rt.ApplyRoutes()

	srv := httptest.NewServer(rt)

	inst := &instance{srv: srv, ctrl: ctrl}
	var once sync.Once
	inst.stop = func() {
		once.Do(func() {
			srv.Close()
			_ = ctrl.Close()
			_ = channel.Close()
			_ = db.Close()
		})
	}
	t.Cleanup(inst.stop)

	return inst
}

func (i *instance) signIn(t *testing.T) {
	t.Helper()

	body := bytes.NewBufferString(`{"email":"pastor@church.org","password":"correct"}`)
	resp, err := http.Post(i.srv.URL+"/v1/session", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func (i *instance) sessionState(t *testing.T) gateway.SessionResponse {
	t.Helper()

	resp, err := http.Get(i.srv.URL + "/v1/session")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var state gateway.SessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	return state
}

// noRedirect is an http.Client that surfaces 3xx responses instead of
// following them.
func noRedirect() *http.Client {
	return &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}
