package gate

import (
	"net/http"
	"strings"

	"github.com/querydesk/querydesk/internal/metrics"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
	"github.com/querydesk/querydesk/pkg/logger"
)

// User-Agent tokens of known traffic-interception and debugging tools.
// Substring match, case-insensitive. Trivially spoofable, so a miss means
// nothing; a hit is an honest tool announcing itself.
var interceptionTokens = []string{
	"httpcanary",
	"burp",
	"fiddler",
	"charles",
	"mitmproxy",
	"proxyman",
	"wireshark",
	"packet capture",
	"sniffer",
}

// InterceptGuard rejects requests whose User-Agent names a known
// interception tool. The response is a generic 403 with no code so the
// tool's operator learns nothing about which check fired.
func InterceptGuard(audit *logger.AuditLogger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ua := strings.ToLower(r.Header.Get("User-Agent"))

			for _, token := range interceptionTokens {
				if strings.Contains(ua, token) {
					audit.LogGateBlock(CheckIntercept, "", pkghttp.ExtractClientIP(r), r.Header.Get("User-Agent"))
					m.IncGateRejection(CheckIntercept)
					pkghttp.WriteForbidden(w, "Forbidden")
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}
