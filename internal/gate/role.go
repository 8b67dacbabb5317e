package gate

import (
	"net/http"

	"github.com/querydesk/querydesk/internal/models"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
)

// RequirePrivileged restricts a route to the variant's privileged role.
// Must run after RequireAuth.
func RequirePrivileged(variant models.Variant) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := GetIdentity(r)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			if identity.Role != variant.PrivilegedRole {
				pkghttp.WriteForbidden(w, "Forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
