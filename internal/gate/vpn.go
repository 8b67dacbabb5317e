package gate

import (
	"net/http"

	"github.com/querydesk/querydesk/internal/metrics"
	"github.com/querydesk/querydesk/internal/vpn"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
	"github.com/querydesk/querydesk/pkg/logger"
)

// VPNGuard rejects clients whose IP is flagged by the VPN detector.
// Detector failures never block a request.
func VPNGuard(detector *vpn.Detector, audit *logger.AuditLogger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r)

			flagged, source := detector.Check(r.Context(), ip)
			if flagged {
				audit.LogGateBlock(CheckVPN, source, ip, r.Header.Get("User-Agent"))
				m.IncGateRejection(CheckVPN)
				pkghttp.WriteForbiddenCode(w, "Access denied: VPN or proxy detected", CodeVPNDetected)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
