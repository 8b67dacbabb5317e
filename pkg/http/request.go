package http

import (
	"net"
	"net/http"
	"strings"
)

// ExtractClientIP resolves the caller's IP address: the first entry of
// X-Forwarded-For when present, otherwise the socket address. The header is
// attacker-controlled for direct connections; callers treat the result as a
// heuristic identity, never a trust decision.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first := xff
		if idx := strings.Index(xff, ","); idx >= 0 {
			first = xff[:idx]
		}
		first = strings.TrimSpace(first)
		if isValidIP(first) {
			return first
		}
	}

	return getRemoteAddr(r)
}

// getRemoteAddr extracts the IP address from RemoteAddr (removing port if present)
func getRemoteAddr(r *http.Request) string {
	if r.RemoteAddr != "" {
		// RemoteAddr may include port: "ip:port"
		if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
			return ip
		}
		// If no port, just use it directly
		return r.RemoteAddr
	}
	return "unknown"
}

// isValidIP checks if a string is a valid IPv4 or IPv6 address
func isValidIP(ip string) bool {
	return net.ParseIP(ip) != nil
}
