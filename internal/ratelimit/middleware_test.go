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

func newTestRouter(s *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(s.Middleware())
	router.GET("/api/calls", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func TestMiddleware_SetsRateLimitHeaders(t *testing.T) {
	config := DefaultServiceConfig()
	config.Routes = []RouteLimit{
		{Prefix: "/api/calls", Method: "GET", Config: Config{Window: time.Minute, MaxRequests: 5}},
	}
	s := NewService(config, nil, nil, nil, nil)
	router := newTestRouter(s)

	req := httptest.NewRequest("GET", "/api/calls", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "4", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
}

func TestMiddleware_Returns429WhenExceeded(t *testing.T) {
	config := DefaultServiceConfig()
	config.Routes = []RouteLimit{
		{Prefix: "/api/calls", Method: "GET", Config: Config{Window: time.Minute, MaxRequests: 2}},
	}
	s := NewService(config, nil, nil, nil, nil)
	router := newTestRouter(s)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest("GET", "/api/calls", nil)
		req.RemoteAddr = "10.0.0.1:50000"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code)
	}

	req := httptest.NewRequest("GET", "/api/calls", nil)
	req.RemoteAddr = "10.0.0.1:50000"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "rate limit exceeded")
}

func TestMiddleware_SeparatesClientsByIP(t *testing.T) {
	config := DefaultServiceConfig()
	config.Routes = []RouteLimit{
		{Prefix: "/api/calls", Method: "GET", Config: Config{Window: time.Minute, MaxRequests: 1}},
	}
	s := NewService(config, nil, nil, nil, nil)
	router := newTestRouter(s)

	first := httptest.NewRequest("GET", "/api/calls", nil)
	first.Header.Set("X-Forwarded-For", "203.0.113.5")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, first)
	require.Equal(t, http.StatusOK, w.Code)

	again := httptest.NewRequest("GET", "/api/calls", nil)
	again.Header.Set("X-Forwarded-For", "203.0.113.5")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, again)
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	other := httptest.NewRequest("GET", "/api/calls", nil)
	other.Header.Set("X-Forwarded-For", "203.0.113.9")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, other)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.5, 198.51.100.7")
	assert.Equal(t, "203.0.113.5", clientIP(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Real-IP", "203.0.113.8")
	assert.Equal(t, "203.0.113.8", clientIP(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.4:9999"
	assert.Equal(t, "192.0.2.4", clientIP(req))
}
