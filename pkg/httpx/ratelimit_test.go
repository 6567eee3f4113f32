package httpx_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sendhisword/portal/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")

		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	config := httpx.RateLimitConfig{
		RequestsPerWindow: 3,
		Window:            time.Minute,
		Burst:             3,
	}

	handler := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)

	doReq := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/session", nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("allows up to burst then rejects", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			rec := doReq("10.0.0.1")
			require.Equal(t, http.StatusOK, rec.Code, "request %d", i)
		}

		rec := doReq("10.0.0.1")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			doReq("10.0.0.2")
		}
		require.Equal(t, http.StatusTooManyRequests, doReq("10.0.0.2").Code)
		require.Equal(t, http.StatusOK, doReq("10.0.0.3").Code)
	})
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{RequestsPerWindow: 5, Window: time.Minute, Burst: 5}

	t.Run("defaults when unset", func(t *testing.T) {
		got := httpx.ParseRateLimitFromEnv("UNIT_UNSET", def)
		require.Equal(t, def, got)
	})

	t.Run("overrides from env", func(t *testing.T) {
		t.Setenv("RATELIMIT_UNIT_REQUESTS", "9")
		t.Setenv("RATELIMIT_UNIT_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_UNIT_BURST", "2")

		got := httpx.ParseRateLimitFromEnv("UNIT", def)
		require.Equal(t, 9, got.RequestsPerWindow)
		require.Equal(t, 30*time.Second, got.Window)
		require.Equal(t, 2, got.Burst)
	})

	t.Run("ignores junk values", func(t *testing.T) {
		t.Setenv("RATELIMIT_UNIT2_REQUESTS", "banana")
		got := httpx.ParseRateLimitFromEnv("UNIT2", def)
		require.Equal(t, def.RequestsPerWindow, got.RequestsPerWindow)
	})
}

func TestWriteJSONSetsNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusOK, map[string]string{"ok": "yes"})

	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.JSONEq(t, `{"ok":"yes"}`, rec.Body.String())
}

func BenchmarkRateLimitMiddleware(b *testing.B) {
	config := httpx.RateLimitConfig{RequestsPerWindow: 1000000, Window: time.Second, Burst: 1000000}
	handler := httpx.RateLimitByIP(config)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}),
	)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("10.0.%d.%d:1", i%256, i%253)
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
