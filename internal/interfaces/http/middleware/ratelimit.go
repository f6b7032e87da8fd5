package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RateLimitConfig controls the per-client token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the refill rate; Burst is the bucket capacity.
	RequestsPerSecond float64
	Burst             int
	// CleanupInterval bounds how long idle client buckets are retained.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig allows bursts of 20 at 10 req/s per client IP,
// generous for interactive use but a backstop against runaway scripts
// hammering the pose pipeline.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{RequestsPerSecond: 10, Burst: 20, CleanupInterval: 5 * time.Minute}
}

// bucket is one client's token state.
type bucket struct {
	tokens   float64
	lastFill time.Time
}

// limiter is a token-bucket rate limiter keyed by client address.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	cfg     RateLimitConfig
	lastGC  time.Time
	now     func() time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = int(cfg.RequestsPerSecond)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	return &limiter{
		buckets: make(map[string]*bucket),
		cfg:     cfg,
		lastGC:  time.Now(),
		now:     time.Now,
	}
}

// allow takes one token from key's bucket, reporting whether one was
// available.
func (l *limiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > l.cfg.CleanupInterval {
		l.gc(now)
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.Burst), lastFill: now}
		l.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastFill).Seconds() * l.cfg.RequestsPerSecond
	if max := float64(l.cfg.Burst); b.tokens > max {
		b.tokens = max
	}
	b.lastFill = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// gc drops buckets idle long enough to have refilled completely. Caller
// holds the lock.
func (l *limiter) gc(now time.Time) {
	idle := time.Duration(float64(l.cfg.Burst)/l.cfg.RequestsPerSecond)*time.Second + l.cfg.CleanupInterval
	for key, b := range l.buckets {
		if now.Sub(b.lastFill) > idle {
			delete(l.buckets, key)
		}
	}
	l.lastGC = now
}

// RateLimit rejects requests beyond the per-client budget with 429.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	l := newLimiter(cfg)
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP()) {
			c.Writer.Header().Set("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "COMMON_006",
					"message": "too many requests",
				},
			})
			return
		}
		c.Next()
	}
}
