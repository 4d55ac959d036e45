package server

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/conneroisu/sentra/internal/config"
	"github.com/conneroisu/sentra/internal/errors"
	"github.com/conneroisu/sentra/internal/logging"
)

const (
	bucketCleanupInterval = 5 * time.Minute
	bucketExpiry          = 10 * time.Minute
)

// RateLimiter implements token bucket rate limiting keyed by client IP.
type RateLimiter struct {
	buckets     map[string]*TokenBucket
	bucketMutex sync.RWMutex
	config      config.RateLimitConfig
	logger      logging.Logger
	now         func() time.Time

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// TokenBucket represents a token bucket for rate limiting
type TokenBucket struct {
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastAccess time.Time
	mutex      sync.Mutex
}

// RateLimitResult represents the result of a rate limit check
type RateLimitResult struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	ResetTime  time.Time
}

// NewRateLimiter creates a rate limiter and starts the goroutine that drops
// idle buckets. Call Stop to release it.
func NewRateLimiter(cfg config.RateLimitConfig, logger logging.Logger) *RateLimiter {
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	rl := &RateLimiter{
		buckets: make(map[string]*TokenBucket),
		config:  cfg,
		logger:  logger,
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go rl.cleanupExpiredBuckets()

	return rl
}

// Check checks if a request is allowed for the given key (usually IP address)
func (rl *RateLimiter) Check(key string) RateLimitResult {
	if !rl.config.Enabled {
		return RateLimitResult{Allowed: true, Remaining: rl.config.BurstSize}
	}

	now := rl.now()
	return rl.getBucket(key, now).consume(now)
}

// getBucket gets or creates a token bucket for the given key
func (rl *RateLimiter) getBucket(key string, now time.Time) *TokenBucket {
	rl.bucketMutex.RLock()
	bucket, exists := rl.buckets[key]
	rl.bucketMutex.RUnlock()
	if exists {
		return bucket
	}

	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	// Double-check after acquiring write lock
	if bucket, exists := rl.buckets[key]; exists {
		return bucket
	}

	bucket = &TokenBucket{
		tokens:     float64(rl.config.BurstSize),
		capacity:   float64(rl.config.BurstSize),
		refillRate: float64(rl.config.RequestsPerMinute) / 60,
		lastRefill: now,
		lastAccess: now,
	}
	rl.buckets[key] = bucket
	return bucket
}

// consume attempts to consume a token from the bucket
func (tb *TokenBucket) consume(now time.Time) RateLimitResult {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	tb.lastAccess = now
	tb.refill(now)

	if tb.tokens >= 1 {
		tb.tokens--
		return RateLimitResult{
			Allowed:   true,
			Remaining: int(tb.tokens),
			ResetTime: now.Add(tb.untilFull()),
		}
	}

	retryAfter := time.Duration((1 - tb.tokens) / tb.refillRate * float64(time.Second))
	return RateLimitResult{
		Allowed:    false,
		Remaining:  0,
		RetryAfter: retryAfter,
		ResetTime:  now.Add(retryAfter),
	}
}

// refill adds tokens to the bucket based on elapsed time
func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed.Seconds() * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

func (tb *TokenBucket) untilFull() time.Duration {
	if tb.refillRate <= 0 {
		return 0
	}
	return time.Duration((tb.capacity - tb.tokens) / tb.refillRate * float64(time.Second))
}

// cleanupExpiredBuckets removes buckets that haven't been accessed recently
func (rl *RateLimiter) cleanupExpiredBuckets() {
	defer close(rl.done)

	ticker := time.NewTicker(bucketCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.performCleanup()
		case <-rl.stop:
			return
		}
	}
}

// performCleanup removes expired buckets
func (rl *RateLimiter) performCleanup() int {
	rl.bucketMutex.Lock()
	defer rl.bucketMutex.Unlock()

	now := rl.now()
	removed := 0
	for key, bucket := range rl.buckets {
		bucket.mutex.Lock()
		if now.Sub(bucket.lastAccess) > bucketExpiry {
			delete(rl.buckets, key)
			removed++
		}
		bucket.mutex.Unlock()
	}
	return removed
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	<-rl.done
}

// GetStats returns rate limiter statistics
func (rl *RateLimiter) GetStats() map[string]interface{} {
	rl.bucketMutex.RLock()
	defer rl.bucketMutex.RUnlock()

	return map[string]interface{}{
		"enabled":          rl.config.Enabled,
		"requests_per_min": rl.config.RequestsPerMinute,
		"burst_size":       rl.config.BurstSize,
		"active_buckets":   len(rl.buckets),
	}
}

// RateLimitMiddleware creates HTTP middleware for rate limiting. Buckets are
// keyed by clientIP.
func RateLimitMiddleware(limiter *RateLimiter, clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.config.Enabled {
				next.ServeHTTP(w, r)
				return
			}

			ip := clientIP(r)
			result := limiter.Check(ip)

			w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limiter.config.RequestsPerMinute))
			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", result.ResetTime.Unix()))

			if !result.Allowed {
				retry := int(result.RetryAfter.Seconds() + 0.999)
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", fmt.Sprintf("%d", retry))

				logging.LogSecurityEvent(r.Context(), limiter.logger, "rate_limit_exceeded", map[string]interface{}{
					"client_ip": ip,
					"path":      r.URL.Path,
					"method":    r.Method,
				})

				writeError(r.Context(), w, limiter.logger,
					errors.NewSecurityError(errors.ErrCodeRateLimited, "rate limit exceeded"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
