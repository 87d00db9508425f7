package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// rateLimiter counts requests per key inside a one-minute window.
type rateLimiter struct {
	limit  int
	mu     sync.Mutex
	counts map[string]int
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{
		limit:  limit,
		counts: make(map[string]int),
	}
}

func (r *rateLimiter) allow(key string) bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counts[key]++
	return r.counts[key] <= r.limit
}

func (r *rateLimiter) startReset() {
	ticker := time.NewTicker(time.Minute)
	go func() {
		for range ticker.C {
			r.mu.Lock()
			r.counts = make(map[string]int)
			r.mu.Unlock()
		}
	}()
}

// AuthRateLimit limits credential endpoints per client IP to slow down
// guessing. A zero or negative limit disables it.
func AuthRateLimit(limit int) gin.HandlerFunc {
	limiter := newRateLimiter(limit)
	if limit > 0 {
		limiter.startReset()
	}

	return func(c *gin.Context) {
		if !limiter.allow(c.ClientIP()) {
			c.JSON(http.StatusTooManyRequests, ErrorResponse{Error: "too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
