package server

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/sentra/internal/config"
	"github.com/conneroisu/sentra/internal/errors"
)

func newTestLimiter(t *testing.T, rpm, burst int) (*RateLimiter, *time.Time) {
	t.Helper()
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: rpm, BurstSize: burst}, nil)
	t.Cleanup(rl.Stop)

	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return rl, &now
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 3)

	for i := 0; i < 3; i++ {
		res := rl.Check("1.2.3.4")
		require.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 2-i, res.Remaining)
	}

	denied := rl.Check("1.2.3.4")
	assert.False(t, denied.Allowed)
	assert.Equal(t, time.Second, denied.RetryAfter)

	assert.True(t, rl.Check("5.6.7.8").Allowed, "buckets are per key")

	*now = now.Add(time.Second)
	assert.True(t, rl.Check("1.2.3.4").Allowed)
	assert.False(t, rl.Check("1.2.3.4").Allowed)
}

func TestRateLimiterRefillCapsAtBurst(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 2)

	rl.Check("k")
	*now = now.Add(time.Hour)

	assert.Equal(t, 1, rl.Check("k").Remaining)
}

func TestRateLimiterDisabled(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: false, BurstSize: 1}, nil)
	defer rl.Stop()

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Check("k").Allowed)
	}
	assert.Equal(t, 0, rl.GetStats()["active_buckets"])
}

func TestRateLimiterCleanup(t *testing.T) {
	rl, now := newTestLimiter(t, 60, 2)

	rl.Check("old")
	*now = now.Add(bucketExpiry + time.Second)
	rl.Check("fresh")

	assert.Equal(t, 1, rl.performCleanup())
	assert.Equal(t, 1, rl.GetStats()["active_buckets"])
}

func TestRateLimiterStopIdempotent(t *testing.T) {
	rl := NewRateLimiter(config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, BurstSize: 1}, nil)
	rl.Stop()
	rl.Stop()
}

func TestRateLimitMiddleware(t *testing.T) {
	rl, _ := newTestLimiter(t, 60, 2)
	h := RateLimitMiddleware(rl, remoteHost)(okHandler)

	do := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do().Code)
	second := do()
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "0", second.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", second.Header().Get("X-RateLimit-Limit"))

	third := do()
	assert.Equal(t, http.StatusTooManyRequests, third.Code)
	retry, err := strconv.Atoi(third.Header().Get("Retry-After"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, retry, 1)
	assert.Contains(t, third.Body.String(), errors.ErrCodeRateLimited)
}

func TestRateLimitMiddlewareForwardedFor(t *testing.T) {
	tests := []struct {
		name    string
		trusted []string
		want    []int
	}{
		{"untrusted peer cannot rotate forwarded addresses", nil, []int{http.StatusOK, http.StatusTooManyRequests}},
		{"trusted proxy forwards distinct clients", []string{"10.0.0.0/8"}, []int{http.StatusOK, http.StatusOK}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl, _ := newTestLimiter(t, 1, 1)
			resolver, err := newClientIPResolver(tt.trusted)
			require.NoError(t, err)
			h := RateLimitMiddleware(rl, resolver.clientIP)(okHandler)

			for i, want := range tt.want {
				req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
				req.RemoteAddr = "10.0.0.1:5555"
				req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i+1))
				rec := httptest.NewRecorder()
				h.ServeHTTP(rec, req)
				assert.Equal(t, want, rec.Code, "request %d", i+1)
			}
		})
	}
}

func TestServerRateLimitedIgnoresForwardedFor(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, BurstSize: 1}
	})

	get := func(forwarded string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/health", nil)
		require.NoError(t, err)
		req.Header.Set("X-Forwarded-For", forwarded)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		return resp
	}

	first := get("198.51.100.1")
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second := get("198.51.100.2")
	defer second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
}

func TestServerRateLimited(t *testing.T) {
	_, ts := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, BurstSize: 1}
	})

	first, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	first.Body.Close()
	assert.Equal(t, http.StatusOK, first.StatusCode)

	second, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer second.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, second.StatusCode)
	assert.Equal(t, errors.ErrCodeRateLimited, decode(t, second)["code"])
}
