package ratelimit

import (
	"fmt"
	"strings"
	"time"
)

// RequestContext is the minimal request surface the limiter consumes:
// a client identity (derived from forwarded-IP headers or an
// authenticated user ID), the route path and the HTTP method.
type RequestContext struct {
	Identity string
	Method   string
	Path     string
}

// Config holds the window parameters applied to a key.
type Config struct {
	Window      time.Duration
	MaxRequests int
}

// Decision is the structured outcome of a rate-limit check. A denial is
// not an error; it carries a retry-after hint so the calling layer can
// render a "try again in N seconds" response.
type Decision struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetTime  time.Time `json:"reset_time"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, set only on denial
	Reason     string    `json:"reason,omitempty"`
}

// KeyFunc derives the counting key for a request.
type KeyFunc func(rc RequestContext) string

// DefaultKeyFunc keys on identity, method and route prefix.
func DefaultKeyFunc(rc RequestContext) string {
	return fmt.Sprintf("%s:%s:%s", rc.Identity, rc.Method, routePrefix(rc.Path))
}

// RouteLimit maps a route prefix and method to its window parameters.
type RouteLimit struct {
	Prefix string
	Method string // empty matches any method
	Config Config
}

// DefaultRouteLimits returns the static per-endpoint routing table. The
// login route gets a short window with a very low ceiling to blunt
// credential stuffing; the webhook receiver gets a high ceiling since
// it is legitimate machine traffic.
func DefaultRouteLimits() []RouteLimit {
	return []RouteLimit{
		{Prefix: "/api/auth/login", Method: "POST", Config: Config{Window: 15 * time.Minute, MaxRequests: 5}},
		{Prefix: "/api/auth", Method: "", Config: Config{Window: time.Minute, MaxRequests: 20}},
		{Prefix: "/api/webhooks/telephony", Method: "POST", Config: Config{Window: time.Minute, MaxRequests: 600}},
		{Prefix: "/api/calls", Method: "POST", Config: Config{Window: time.Minute, MaxRequests: 30}},
		{Prefix: "/api/calls", Method: "GET", Config: Config{Window: time.Minute, MaxRequests: 120}},
		{Prefix: "/api/jobs", Method: "", Config: Config{Window: time.Minute, MaxRequests: 60}},
	}
}

// routePrefix normalizes a path to its first two segments so keys stay
// bounded regardless of path parameters.
func routePrefix(path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	parts := strings.SplitN(trimmed, "/", 4)
	if len(parts) >= 3 {
		return "/" + parts[0] + "/" + parts[1] + "/" + parts[2]
	}
	return path
}

// matchRoute finds the most specific routing table entry for a request.
// Longest matching prefix wins; a method-specific entry beats a
// method-agnostic one at the same prefix.
func matchRoute(limits []RouteLimit, rc RequestContext) (RouteLimit, bool) {
	var best RouteLimit
	found := false
	for _, rl := range limits {
		if !strings.HasPrefix(rc.Path, rl.Prefix) {
			continue
		}
		if rl.Method != "" && rl.Method != rc.Method {
			continue
		}
		if !found ||
			len(rl.Prefix) > len(best.Prefix) ||
			(len(rl.Prefix) == len(best.Prefix) && best.Method == "" && rl.Method != "") {
			best = rl
			found = true
		}
	}
	return best, found
}
