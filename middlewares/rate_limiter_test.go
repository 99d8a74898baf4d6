package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(2, time.Second)
	defer rl.Stop()
	now := time.Now()

	assert.True(t, rl.allow("10.0.0.1", now))
	assert.True(t, rl.allow("10.0.0.1", now))
	assert.False(t, rl.allow("10.0.0.1", now), "burst exhausted")
	assert.True(t, rl.allow("10.0.0.2", now), "other clients keep their own bucket")

	assert.True(t, rl.allow("10.0.0.1", now.Add(600*time.Millisecond)), "tokens refill over the window")
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 5*time.Millisecond)
	defer rl.Stop()
	rl.allow("10.0.0.1", time.Now())
	require.Equal(t, 1, rl.visitors.Len())

	require.Eventually(t, func() bool {
		rl.visitors.DeleteExpired()
		return rl.visitors.Len() == 0
	}, time.Second, 5*time.Millisecond)

	assert.True(t, rl.allow("10.0.0.1", time.Now()), "an evicted client starts with a full bucket")
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(1, time.Minute).RateLimit())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}
