package server

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// limited wraps a 200 handler in a fresh limiter.
func limited(t *testing.T, rps float64, burst int) http.Handler {
	t.Helper()
	rl, stop := newRateLimiter(rps, burst, slog.Default())
	t.Cleanup(stop)
	return rl.middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

// hit sends one request from addr and returns the recorder.
func hit(h http.Handler, addr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/search", nil)
	req.RemoteAddr = addr
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimit_BurstThenReject(t *testing.T) {
	t.Parallel()

	h := limited(t, 0.001, 3)
	for i := range 3 {
		assert.Equal(t, http.StatusOK, hit(h, "10.0.0.1:9999").Code, "request %d is inside the burst", i)
	}

	w := hit(h, "10.0.0.1:40000")
	require.Equal(t, http.StatusTooManyRequests, w.Code, "same IP on another port shares the bucket")

	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.Positive(t, secs)
}

func TestRateLimit_GenerousLimitNeverRejects(t *testing.T) {
	t.Parallel()

	h := limited(t, 1000, 20)
	for range 20 {
		assert.Equal(t, http.StatusOK, hit(h, "127.0.0.1:12345").Code)
	}
}

func TestRateLimit_BucketsArePerClient(t *testing.T) {
	t.Parallel()

	h := limited(t, 0.001, 1)
	hit(h, "192.168.1.1:1111")
	require.Equal(t, http.StatusTooManyRequests, hit(h, "192.168.1.1:1111").Code)

	assert.Equal(t, http.StatusOK, hit(h, "192.168.1.2:2222").Code)
}

func TestRateLimit_RejectedRequestDoesNotConsumeTokens(t *testing.T) {
	t.Parallel()

	// one token per 100ms; rejections cancel their reservation, so the
	// caller that waits out Retry-After is not pushed further back
	h := limited(t, 10, 1)
	require.Equal(t, http.StatusOK, hit(h, "10.1.1.1:1").Code)
	for range 5 {
		require.Equal(t, http.StatusTooManyRequests, hit(h, "10.1.1.1:1").Code)
	}
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, http.StatusOK, hit(h, "10.1.1.1:1").Code)
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	for addr, want := range map[string]string{
		"127.0.0.1:54321": "127.0.0.1",
		"10.0.0.1:80":     "10.0.0.1",
		"[::1]:8080":      "::1",
		"noport":          "noport",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		assert.Equal(t, want, clientIP(req), "RemoteAddr %q", addr)
	}
}

func TestRetryAfter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		delay time.Duration
		ok    bool
		want  int
	}{
		{10 * time.Millisecond, true, 1},
		{1500 * time.Millisecond, true, 2},
		{17 * time.Minute, true, 1020},
		{0, false, 60},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, retryAfter(tt.delay, tt.ok), "retryAfter(%v, %v)", tt.delay, tt.ok)
	}
}

func TestRateLimit_EvictsIdleClients(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, slog.Default())
	defer stop()

	rl.getLimiter("10.0.0.1")
	rl.getLimiter("10.0.0.2")
	rl.evictBefore(time.Now().Add(-time.Hour))
	rl.mu.Lock()
	assert.Len(t, rl.limiters, 2, "recently used buckets survive")
	rl.mu.Unlock()

	rl.evictBefore(time.Now().Add(time.Second))
	rl.mu.Lock()
	assert.Empty(t, rl.limiters)
	rl.mu.Unlock()
}

func TestRateLimit_OnlyBusinessRoutes(t *testing.T) {
	t.Parallel()

	env := newTestServer(t, func(c *Config) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/api/transcripts", nil)).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(httptest.NewRequest(http.MethodGet, "/api/transcripts", nil)).Code)

	for range 3 {
		assert.Equal(t, http.StatusOK, env.do(httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)
	}
}
