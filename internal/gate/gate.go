// Package gate implements the ordered request-filter chain applied before
// any business logic: static hardening headers, an interception-tool
// heuristic, origin/CORS enforcement, VPN/proxy detection, authentication,
// role enforcement, and rate limiting. Each check is an independent,
// short-circuiting middleware; the canonical order is fixed by Chain.
package gate

import (
	"net/http"
	"time"

	"github.com/querydesk/querydesk/internal/metrics"
	"github.com/querydesk/querydesk/internal/models"
	"github.com/querydesk/querydesk/internal/session"
	"github.com/querydesk/querydesk/internal/vpn"
	"github.com/querydesk/querydesk/pkg/logger"
)

// Check names, used as metric labels and for chain introspection.
const (
	CheckSecurityHeaders = "security_headers"
	CheckIntercept       = "intercept"
	CheckOrigin          = "origin"
	CheckVPN             = "vpn"
	CheckAuth            = "auth"
	CheckRole            = "role"
	CheckRateLimit       = "rate_limit"
)

// Check is one named gate middleware.
type Check struct {
	Name       string
	Middleware func(http.Handler) http.Handler
}

// Deps carries the collaborators the checks need.
type Deps struct {
	Origin     OriginConfig
	Detector   *vpn.Detector
	Sessions   *session.Store
	Secret     string
	Cookie     session.CookieConfig
	Variant    models.Variant
	Audit      *logger.AuditLogger
	Metrics    *metrics.Metrics
	RateLimit  int
	RateWindow time.Duration
}

// Chain returns every check in the canonical gate order. Route groups
// attach subsets of these, always preserving this relative order; no group
// ever reorders them.
func Chain(d Deps) []Check {
	return []Check{
		{Name: CheckSecurityHeaders, Middleware: SecurityHeaders()},
		{Name: CheckIntercept, Middleware: InterceptGuard(d.Audit, d.Metrics)},
		{Name: CheckOrigin, Middleware: OriginGate(d.Origin, d.Audit, d.Metrics)},
		{Name: CheckVPN, Middleware: VPNGuard(d.Detector, d.Audit, d.Metrics)},
		{Name: CheckAuth, Middleware: RequireAuth(d.Sessions, d.Secret, d.Cookie)},
		{Name: CheckRole, Middleware: RequirePrivileged(d.Variant)},
		{Name: CheckRateLimit, Middleware: RateLimit(d.RateLimit, d.RateWindow)},
	}
}

// Compose wraps final with the checks applied in slice order: the first
// check sees the request first and a rejection anywhere stops the descent.
func Compose(checks []Check, final http.Handler) http.Handler {
	h := final
	for i := len(checks) - 1; i >= 0; i-- {
		h = checks[i].Middleware(h)
	}
	return h
}
