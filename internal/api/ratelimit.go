package api

import (
	"math"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/cewkb/kbsearch/internal/errors"
)

// getClientIP extracts the client IP from the request.
// Checks X-Forwarded-For and X-Real-IP headers before falling back to RemoteAddr.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// rateLimited builds the error returned when a client must wait.
func rateLimited(retryAfter time.Duration) error {
	return errors.RateLimited("too many refresh requests").WithDetails(map[string]int{
		"retry_after_seconds": int(math.Ceil(retryAfter.Seconds())),
	})
}
