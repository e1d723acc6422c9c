package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/therealutkarshpriyadarshi/sourcing/pkg/models"
)

func limitedRouter(rl *RateLimiter, setup ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(setup...)
	router.Use(RateLimit(rl))
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func hit(router http.Handler, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	if user != "" {
		req.Header.Set("X-User", user)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimitBurstThenRejects(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 2)
	rl.now = func() time.Time { return now }
	router := limitedRouter(rl)

	assert.Equal(t, http.StatusOK, hit(router, "").Code)
	assert.Equal(t, http.StatusOK, hit(router, "").Code)

	w := hit(router, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	var resp models.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, ErrCodeRateLimited, resp.Params.Err)

	// a rejected request does not consume the refill
	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, hit(router, "").Code)
}

func TestRateLimitKeysByUser(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	router := limitedRouter(rl, func(c *gin.Context) {
		if user := c.GetHeader("X-User"); user != "" {
			c.Set(AuthContextKey, user)
		}
	})

	assert.Equal(t, http.StatusOK, hit(router, "alice").Code)
	assert.Equal(t, http.StatusOK, hit(router, "bob").Code)
	assert.Equal(t, http.StatusTooManyRequests, hit(router, "alice").Code)
	// anonymous callers share the ip bucket, separate from users
	assert.Equal(t, http.StatusOK, hit(router, "").Code)
}

func TestRateLimiterPrune(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.reserve("ip:1")
	now = now.Add(90 * time.Minute)
	rl.reserve("ip:2")

	assert.Equal(t, 0, rl.Prune(2*time.Hour))
	assert.Equal(t, 1, rl.Prune(time.Hour))
	assert.Len(t, rl.buckets, 1)
	assert.Contains(t, rl.buckets, "ip:2")
}

func TestRateLimiterCleanupStops(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		rl.Cleanup(ctx, 10*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleanup did not stop after cancel")
	}
}
