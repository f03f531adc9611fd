package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func doRequest(handler http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = ip + ":12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestRateLimit_BlocksAfterBurst(t *testing.T) {
	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(RateLimitConfig{Max: 3, Window: time.Hour}),
	)

	for i := 0; i < 3; i++ {
		rec := doRequest(handler, "10.0.0.1")
		assert.Equal(t, http.StatusOK, rec.Code, "request %d", i)
	}
	rec := doRequest(handler, "10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimit_KeysAreIndependent(t *testing.T) {
	handler := Wrap(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		RateLimit(RateLimitConfig{Max: 1, Window: time.Hour}),
	)

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2").Code)
}

func TestRateLimit_RefillsOverTime(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 2, Window: time.Second})
	now := time.Now()

	_, allowed := rl.allow("k", now)
	assert.True(t, allowed)
	_, allowed = rl.allow("k", now)
	assert.True(t, allowed)
	_, allowed = rl.allow("k", now)
	assert.False(t, allowed)

	_, allowed = rl.allow("k", now.Add(600*time.Millisecond))
	assert.True(t, allowed)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4444"
	assert.Equal(t, "192.0.2.10", clientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.5")
	assert.Equal(t, "203.0.113.5", clientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.7, 10.0.0.1")
	assert.Equal(t, "198.51.100.7", clientIP(req))
}
