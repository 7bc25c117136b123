package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/faycaldjilali/sorabo/pkg/logger"
	"github.com/gin-gonic/gin"
)

type bucket struct {
	count       int
	windowStart time.Time
}

// RateLimiter caps requests per client IP over a sliding window. Each IP
// gets its own window so one noisy client never resets the others.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    int
	window  time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		window:  window,
	}
}

// Allow reports whether the client may proceed and counts the request.
func (rl *RateLimiter) Allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[clientIP]
	if !ok || now.Sub(b.windowStart) > rl.window {
		rl.buckets[clientIP] = &bucket{count: 1, windowStart: now}
		rl.dropStale(now)
		return true
	}

	if b.count >= rl.rate {
		return false
	}
	b.count++
	return true
}

// dropStale removes expired buckets. Called with the lock held.
func (rl *RateLimiter) dropStale(now time.Time) {
	for ip, b := range rl.buckets {
		if now.Sub(b.windowStart) > rl.window {
			delete(rl.buckets, ip)
		}
	}
}

// RateLimit middleware limits requests per IP
func RateLimit(rate int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(rate, window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()

		if !limiter.Allow(clientIP) {
			logger.WithContext(c.Request.Context()).Warn("rate limit exceeded",
				"client_ip", clientIP,
			)

			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded. Please try again later.",
			})
			return
		}

		c.Next()
	}
}
