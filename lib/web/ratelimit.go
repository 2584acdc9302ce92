package web

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/go-i2p/dbpool/lib/ratelimit"
)

// RateLimitConfig configures per-IP rate limiting of /readyz.
type RateLimitConfig struct {
	// RequestsPerSecond is the rate of allowed requests per IP.
	RequestsPerSecond float64
	// BurstSize is the maximum burst size per IP.
	BurstSize int
	// CleanupInterval is how often idle limiters are dropped.
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 5,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimiter is gin middleware for per-IP rate limiting.
type RateLimiter struct {
	limiter *ratelimit.Keyed
}

// NewRateLimiter creates a rate limiter. Zero fields take their defaults.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	d := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = d.RequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = d.BurstSize
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = d.CleanupInterval
	}

	return &RateLimiter{
		limiter: ratelimit.NewKeyed(cfg.RequestsPerSecond, cfg.BurstSize, cfg.CleanupInterval),
	}
}

// Close stops the limiter's cleanup goroutine.
func (rl *RateLimiter) Close() {
	rl.limiter.Close()
}

// Middleware rejects requests over the limit with 429.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
