package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per client IP. Buckets of clients that
// stay quiet for ten windows are evicted.
type RateLimiter struct {
	limit    rate.Limit
	burst    int
	visitors *ttlcache.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows requests per window for every IP.
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	if requests <= 0 {
		requests = 1
	}
	if window <= 0 {
		window = time.Second
	}
	visitors := ttlcache.New(ttlcache.WithTTL[string, *rate.Limiter](10 * window))
	go visitors.Start()
	return &RateLimiter{
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		visitors: visitors,
	}
}

// NewStrictRateLimiter -> lebih ketat untuk endpoint login
func NewStrictRateLimiter() gin.HandlerFunc {
	return NewRateLimiter(5, time.Minute).RateLimit()
}

func (rl *RateLimiter) allow(ip string, now time.Time) bool {
	if item := rl.visitors.Get(ip); item != nil {
		return item.Value().AllowN(now, 1)
	}
	item, _ := rl.visitors.GetOrSet(ip, rate.NewLimiter(rl.limit, rl.burst))
	return item.Value().AllowN(now, 1)
}

// Stop ends the eviction loop.
func (rl *RateLimiter) Stop() {
	rl.visitors.Stop()
}

func (rl *RateLimiter) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP(), time.Now()) {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, slow down"})
			c.Abort()
			return
		}
		c.Next()
	}
}
