package gate

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/querydesk/querydesk/internal/metrics"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
	"github.com/querydesk/querydesk/pkg/logger"
)

// Gate rejection codes surfaced to the client.
const (
	CodeNoOrigin       = "NO_ORIGIN"
	CodeOriginBlocked  = "ORIGIN_BLOCKED"
	CodeRefererBlocked = "REFERER_BLOCKED"
	CodeVPNDetected    = "VPN_DETECTED"
)

// Hosting-platform domains whose deploy previews are allowed regardless of
// the literal allowlist.
var platformDomains = []string{
	".vercel.app",
	".netlify.app",
	".onrender.com",
	".pages.dev",
}

// Browser User-Agent markers. Headerless requests from anything else are
// rejected on protected API paths.
var browserMarkers = []string{"mozilla", "chrome", "safari"}

const (
	apiPrefix   = "/api/"
	whoAmIPath  = "/api/auth/me"
	corsMethods = "GET, POST, PUT, DELETE, OPTIONS"
	corsHeaders = "Content-Type, Accept"
)

// OriginConfig holds the literal origin allowlist.
type OriginConfig struct {
	AllowedOrigins []string
}

// OriginGate enforces the origin allowlist on API paths. Allowed origins
// are echoed back with credentials enabled; disallowed Origin and Referer
// headers reject with distinct codes, and headerless non-browser callers
// are rejected on protected API paths.
func OriginGate(cfg OriginConfig, audit *logger.AuditLogger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, apiPrefix) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			referer := r.Header.Get("Referer")

			if origin == "" && referer == "" {
				// The who-am-i probe stays reachable for cookie checks.
				// Browsers strip Origin on some same-origin GETs, so a
				// browser-looking UA passes; everything else is rejected.
				if r.URL.Path != whoAmIPath && !looksLikeBrowser(r.Header.Get("User-Agent")) {
					audit.LogGateBlock(CheckOrigin, CodeNoOrigin, pkghttp.ExtractClientIP(r), r.Header.Get("User-Agent"))
					m.IncGateRejection(CheckOrigin)
					pkghttp.WriteForbiddenCode(w, "Origin verification failed", CodeNoOrigin)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			if origin != "" && !originAllowed(origin, cfg.AllowedOrigins) {
				audit.LogGateBlock(CheckOrigin, CodeOriginBlocked, pkghttp.ExtractClientIP(r), r.Header.Get("User-Agent"))
				m.IncGateRejection(CheckOrigin)
				pkghttp.WriteForbiddenCode(w, "Origin not allowed", CodeOriginBlocked)
				return
			}

			if referer != "" && !refererAllowed(referer, cfg.AllowedOrigins) {
				audit.LogGateBlock(CheckOrigin, CodeRefererBlocked, pkghttp.ExtractClientIP(r), r.Header.Get("User-Agent"))
				m.IncGateRejection(CheckOrigin)
				pkghttp.WriteForbiddenCode(w, "Referer not allowed", CodeRefererBlocked)
				return
			}

			if origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Set("Access-Control-Allow-Methods", corsMethods)
				w.Header().Set("Access-Control-Allow-Headers", corsHeaders)
				w.Header().Add("Vary", "Origin")

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusNoContent)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// originAllowed accepts exact allowlist matches and platform deploy domains.
func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if origin == a {
			return true
		}
	}
	for _, domain := range platformDomains {
		if strings.Contains(origin, domain) {
			return true
		}
	}
	return false
}

// refererAllowed reduces the referer to its origin and applies the same
// allowlist. Unparseable referers are rejected.
func refererAllowed(referer string, allowed []string) bool {
	u, err := url.Parse(referer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	return originAllowed(u.Scheme+"://"+u.Host, allowed)
}

func looksLikeBrowser(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, marker := range browserMarkers {
		if strings.Contains(ua, marker) {
			return true
		}
	}
	return false
}
