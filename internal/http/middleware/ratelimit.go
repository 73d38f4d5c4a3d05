// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements a lightweight, in-memory, token-bucket rate limiter
// with per-client buckets and opportunistic garbage collection. It is
// process-local: for horizontally scaled deployments prefer a distributed
// limiter to enforce global limits. Here it protects the outbound store
// adapters from being hammered through the public aggregation endpoints.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc extracts the identity to rate limit on (typically the client IP).
type keyFunc func(c *gin.Context) string

// KeyByIP buckets requests by client IP as reported by Gin, which honors
// the configured trusted proxy settings.
func KeyByIP(c *gin.Context) string {
	return c.ClientIP()
}

// visitor holds a token bucket and the time it was last seen, so idle
// buckets can be evicted.
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter maintains per-key token buckets.
type RateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	rps   rate.Limit
	burst int
	ttl   time.Duration
	key   keyFunc

	lastGC time.Time
}

// NewRateLimiter builds a limiter allowing rps requests per second with the
// given burst per key. Buckets idle for longer than ttl are evicted during
// opportunistic sweeps; a non-positive ttl defaults to 10 minutes.
func NewRateLimiter(rps float64, burst int, ttl time.Duration, key keyFunc) *RateLimiter {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if key == nil {
		key = KeyByIP
	}
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		rps:      rate.Limit(rps),
		burst:    burst,
		ttl:      ttl,
		key:      key,
		lastGC:   time.Now(),
	}
}

// getVisitor returns the bucket for key, creating it on first sight. At most
// once per minute it also sweeps buckets idle beyond the TTL, so memory
// stays bounded without a background goroutine.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastGC) > time.Minute {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) > rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lastGC = now
	}

	v, ok := rl.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

// Handler returns the Gin middleware enforcing the limit. Rejected requests
// receive a JSON 429 with a Retry-After hint.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.getVisitor(rl.key(c)).Allow() {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"code":  "rate_limited",
				"error": "too many requests",
			})
			return
		}
		c.Next()
	}
}
