package middleware

import (
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	})
}

func statusHandler(status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"success":false}`))
	})
}

func TestCacheControl_ByPathAndStatus(t *testing.T) {
	cases := []struct {
		name    string
		path    string
		handler http.Handler
		want    string
	}{
		{"search is public", "/api/search/events", okHandler(`{}`), "public, max-age=120, must-revalidate"},
		{"search error is not stored", "/api/search/events", statusHandler(http.StatusServiceUnavailable), "no-store"},
		{"analytics", "/api/analytics/zero-result-queries", okHandler(`{}`), "no-store"},
		{"health", "/health/ready", okHandler(`{}`), "no-store"},
		{"other", "/api/other", okHandler(`{}`), "private, no-cache, must-revalidate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			CacheControl(2*time.Minute)(tc.handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
			assert.Equal(t, tc.want, rec.Header().Get("Cache-Control"))
		})
	}
}

func TestCacheControl_ZeroTTLDisablesSearchCaching(t *testing.T) {
	rec := httptest.NewRecorder()
	CacheControl(0)(okHandler(`{}`)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/events", nil))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestETag_NotModified(t *testing.T) {
	handler := ETag(okHandler(`{"success":true}`))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/api/search/events", nil))
	require.Equal(t, http.StatusOK, first.Code)
	etag := first.Header().Get("ETag")
	require.NotEmpty(t, etag)
	assert.Equal(t, `{"success":true}`, first.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/search/events", nil)
	req.Header.Set("If-None-Match", etag)
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, req)
	assert.Equal(t, http.StatusNotModified, second.Code)
	assert.Empty(t, second.Body.String())
}

func TestETag_SkipsErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	ETag(statusHandler(http.StatusServiceUnavailable)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get("ETag"))
	assert.Equal(t, `{"success":false}`, rec.Body.String())
}

func TestCompression(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	rec := httptest.NewRecorder()
	Compression(okHandler(`{"events":[]}`)).ServeHTTP(rec, req)

	require.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	gz, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	body, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Equal(t, `{"events":[]}`, string(body))

	plain := httptest.NewRecorder()
	Compression(okHandler(`{}`)).ServeHTTP(plain, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Empty(t, plain.Header().Get("Content-Encoding"))
	assert.Equal(t, `{}`, plain.Body.String())
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := NewRateLimiter(1, 2)
	frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return frozen }
	handler := RateLimitMiddleware(limiter)(okHandler(`{}`))

	call := func(path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = ip + ":4242"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, call("/api/search/events", "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, call("/api/search/events", "10.0.0.1").Code)

	limited := call("/api/search/events", "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"success":false,"error":"too many requests"}`, limited.Body.String())

	// Other clients and health probes are unaffected
	assert.Equal(t, http.StatusOK, call("/api/search/events", "10.0.0.2").Code)
	assert.Equal(t, http.StatusOK, call("/health", "10.0.0.1").Code)

	// Tokens refill over time
	frozen = frozen.Add(time.Second)
	assert.Equal(t, http.StatusOK, call("/api/search/events", "10.0.0.1").Code)
}

func TestRateLimiter_SweepsIdleClients(t *testing.T) {
	limiter := NewRateLimiter(5, 5)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	now = now.Add(10 * time.Minute)
	limiter.Allow("b")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.clients, "a")
	assert.Contains(t, limiter.clients, "b")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.7")
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", clientIP(req))
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORSMiddleware([]string{"https://swingfinder.example"})(okHandler(`{}`))

	req := httptest.NewRequest(http.MethodGet, "/api/search/events", nil)
	req.Header.Set("Origin", "https://swingfinder.example")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "https://swingfinder.example", rec.Header().Get("Access-Control-Allow-Origin"))

	other := httptest.NewRequest(http.MethodGet, "/api/search/events", nil)
	other.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, other)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoggingMiddleware_RecordsStatus(t *testing.T) {
	var seen *statusRecorder
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = w.(*statusRecorder)
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, http.StatusTeapot, seen.statusCode)
	assert.Equal(t, len("short and stout"), seen.bytes)
}

func TestObservabilityMiddleware_UsesRoutePattern(t *testing.T) {
	mux := http.NewServeMux()
	var pattern string
	mux.HandleFunc("GET /api/search/events", func(w http.ResponseWriter, r *http.Request) {
		pattern = r.Pattern
		w.WriteHeader(http.StatusNoContent)
	})

	rec := httptest.NewRecorder()
	ObservabilityMiddleware(nil)(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/events", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "GET /api/search/events", pattern)
}
