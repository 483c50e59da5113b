package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_LimitsPerKey(t *testing.T) {
	gin.SetMode(gin.TestMode)

	l := NewLimiter(Config{RPS: 0.001, Burst: 2, CleanupInterval: time.Minute, MaxAge: time.Minute})
	r := gin.New()
	r.Use(Middleware(l, func(c *gin.Context) string { return c.GetHeader("X-Caller") }))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(caller string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		req.Header.Set("X-Caller", caller)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, do("a").Code)
	assert.Equal(t, http.StatusOK, do("a").Code)

	limited := do("a")
	require.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), `"error_code":"TOO_MANY_REQUESTS"`)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do("b").Code)
	assert.Equal(t, 2, l.Len())
}

func TestLimiter_Evict(t *testing.T) {
	l := NewLimiter(Config{RPS: 1, Burst: 1, MaxAge: time.Minute})
	l.Allow("old")

	l.evict(time.Now().Add(2 * time.Minute))
	assert.Equal(t, 0, l.Len())
}
