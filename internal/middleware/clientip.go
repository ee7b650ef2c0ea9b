package middleware

import (
	"net"
	"net/http"
	"strings"
)

// ClientIP extracts the client IP address from the request.
// Proxy headers are checked in order: CF-Connecting-IP, the first
// X-Forwarded-For entry, X-Real-IP. RemoteAddr is the fallback, without its
// port.
func ClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
