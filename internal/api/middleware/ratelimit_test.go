package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/docsmith/docex-api/internal/api/middleware"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(handler http.Handler, remoteAddr, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimit_AllowsUnderLimit(t *testing.T) {
	handler := middleware.RateLimit(3, time.Minute)(okHandler())

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""))
	}
}

func TestRateLimit_RejectsOverLimit(t *testing.T) {
	handler := middleware.RateLimit(2, time.Minute)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:1234", ""))
}

func TestRateLimit_PerClientBuckets(t *testing.T) {
	handler := middleware.RateLimit(1, time.Minute)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:5678", ""))
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.2:1234", ""))
}

func TestRateLimit_WindowResets(t *testing.T) {
	handler := middleware.RateLimit(1, 20*time.Millisecond)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.1:1234", ""))

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""))
}

func TestRateLimit_TrustsForwardedFor(t *testing.T) {
	handler := middleware.RateLimit(1, time.Minute)(okHandler())

	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", "203.0.113.7"))
	assert.Equal(t, http.StatusTooManyRequests, doRequest(handler, "10.0.0.9:9999", "203.0.113.7"))
	// Garbage forwarded headers fall back to the socket peer.
	assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.9:9999", "not-an-ip"))
}

func TestRateLimit_ZeroDisables(t *testing.T) {
	handler := middleware.RateLimit(0, time.Minute)(okHandler())

	for i := 0; i < 20; i++ {
		assert.Equal(t, http.StatusOK, doRequest(handler, "10.0.0.1:1234", ""))
	}
}
