package ratelimit

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// Middleware returns a Gin middleware enforcing the limiter's decision
// on every request. Denials get a structured 429 body with a
// retry_after hint rather than a generic failure.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rc := RequestContext{
			Identity: clientIdentity(c),
			Method:   c.Request.Method,
			Path:     c.Request.URL.Path,
		}

		decision := s.Check(c.Request.Context(), rc, nil)

		c.Header("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(decision.ResetTime.Unix(), 10))

		if !decision.Allowed {
			c.Header("Retry-After", strconv.Itoa(decision.RetryAfter))
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"reason":      decision.Reason,
				"retry_after": decision.RetryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// clientIdentity derives the client identity: an authenticated user ID
// when the auth layer has set one, otherwise the forwarded client IP.
func clientIdentity(c *gin.Context) string {
	if userID, exists := c.Get("user_id"); exists {
		if id, ok := userID.(string); ok && id != "" {
			return "user:" + id
		}
	}
	return "ip:" + clientIP(c.Request)
}

// clientIP extracts the real client IP from forwarded headers.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// First IP in the chain is the originating client.
		if idx := strings.IndexByte(xff, ','); idx > 0 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		host = host[:idx]
	}
	return host
}
