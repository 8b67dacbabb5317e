package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/querydesk/querydesk/internal/gate"
	"github.com/querydesk/querydesk/internal/handlers"
)

// RateLimits carries the per-group request budgets. Login gets a tight
// window against credential stuffing; search a wider one sized for normal
// dashboard use.
type RateLimits struct {
	LoginLimit   int
	LoginWindow  time.Duration
	SearchLimit  int
	SearchWindow time.Duration
}

// RegisterRoutes registers all application routes. The headers, intercept
// and origin checks are installed globally by the caller; this wires the
// per-group tail of the gate (VPN, auth, role, rate limit), always in the
// canonical order.
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	accountHandler *handlers.AccountHandler,
	searchHandler *handlers.SearchHandler,
	deps gate.Deps,
	limits RateLimits,
) {
	vpnGuard := gate.VPNGuard(deps.Detector, deps.Audit, deps.Metrics)
	requireAuth := gate.RequireAuth(deps.Sessions, deps.Secret, deps.Cookie)
	requirePrivileged := gate.RequirePrivileged(deps.Variant)

	// Public - no authentication, but VPN-screened and tightly rate limited
	router.With(vpnGuard, gate.RateLimit(limits.LoginLimit, limits.LoginWindow)).
		Post("/api/auth/login", authHandler.Login)

	// Session endpoints - any authenticated caller
	router.Group(func(r chi.Router) {
		r.Use(requireAuth)

		r.Get("/api/auth/me", authHandler.Me)
		r.Post("/api/auth/logout", authHandler.Logout)
	})

	// Search proxy - any authenticated caller, per-IP budget
	router.Group(func(r chi.Router) {
		r.Use(vpnGuard, requireAuth, gate.RateLimit(limits.SearchLimit, limits.SearchWindow))

		r.Get("/api/search/{kind}", searchHandler.Search)
		r.Get("/api/user/features", searchHandler.Features)
	})

	// Privileged CRUD under the variant's prefix
	variant := deps.Variant
	managed := "/" + variant.ManagedPath
	router.Route(variant.AdminPrefix, func(r chi.Router) {
		r.Use(vpnGuard, requireAuth, requirePrivileged)

		r.Get("/stats", accountHandler.Stats)

		r.Get(managed, accountHandler.ListAccounts)
		r.Post(managed, accountHandler.CreateAccount)
		r.Get(managed+"/{id}", accountHandler.GetAccount)
		r.Put(managed+"/{id}", accountHandler.UpdateAccount)
		r.Delete(managed+"/{id}", accountHandler.DeleteAccount)

		// Feature management only exists where the variant grants features
		if variant.HasFeatures {
			r.Get(managed+"/{id}/details", accountHandler.AccountDetails)
			r.Put(managed+"/{id}/features", accountHandler.UpdateFeatures)
		}
	})
}
