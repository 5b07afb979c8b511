package middleware

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// RateLimitConfig bounds how fast a single caller may hit the API.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig allows generous interactive use while still
// containing a runaway client.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// limiterPool hands out one rate.Limiter per caller key, created lazily.
type limiterPool struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	cfg      RateLimitConfig
}

func newLimiterPool(cfg RateLimitConfig) *limiterPool {
	return &limiterPool{limiters: make(map[string]*rate.Limiter), cfg: cfg}
}

func (p *limiterPool) get(key string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.limiters[key]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), p.cfg.BurstSize)
		p.limiters[key] = l
	}
	return l
}

// limitKey scopes the bucket to the authenticated hospital when one is on
// the context, so hospitals sharing a NAT egress do not throttle each
// other. Unauthenticated traffic is keyed by caller IP alone.
func limitKey(c echo.Context) string {
	ip := c.RealIP()
	if hospitalID, ok := c.Get("hospital_id").(string); ok && hospitalID != "" {
		return hospitalID + ":" + ip
	}
	return ip
}

// retryAfterSeconds estimates how long until the limiter has a token again.
func retryAfterSeconds(l *rate.Limiter, rps float64) int {
	if rps <= 0 {
		return 1
	}
	deficit := 1 - l.Tokens()
	if deficit < 0 {
		deficit = 0
	}
	return int(deficit/rps) + 1
}

// RateLimit rejects callers that exceed their per-key budget with a 429 and
// a Retry-After hint.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	pool := newLimiterPool(cfg)
	limitHeader := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			l := pool.get(limitKey(c))
			c.Response().Header().Set("X-RateLimit-Limit", limitHeader)

			if !l.Allow() {
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(l, cfg.RequestsPerSecond)))
				c.Response().Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
