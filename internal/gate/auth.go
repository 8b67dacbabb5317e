package gate

import (
	"context"
	"net/http"

	"github.com/querydesk/querydesk/internal/session"
	pkghttp "github.com/querydesk/querydesk/pkg/http"
)

type contextKey string

const (
	identityContextKey contextKey = "session_identity"
	tokenContextKey    contextKey = "session_token"
)

// RequireAuth resolves the session cookie to an identity. A valid session
// slides its expiry and re-issues the cookie so active clients stay logged
// in; anything else is a 401.
func RequireAuth(store *session.Store, secret string, cookieCfg session.CookieConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			value, err := session.GetSessionCookie(r)
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			token, ok := session.VerifyToken(value, secret)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			identity, ok := store.Get(token)
			if !ok {
				pkghttp.WriteUnauthorized(w, "Authentication required")
				return
			}

			store.Touch(token)
			session.SetSessionCookie(w, session.SignToken(token, secret), cookieCfg)

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			ctx = context.WithValue(ctx, tokenContextKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the authenticated identity set by RequireAuth.
func GetIdentity(r *http.Request) (session.Identity, bool) {
	identity, ok := r.Context().Value(identityContextKey).(session.Identity)
	return identity, ok
}

// WithIdentity returns a request carrying the identity as RequireAuth would
// set it. Handler tests use this to skip the middleware chain.
func WithIdentity(r *http.Request, identity session.Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityContextKey, identity))
}

// WithSessionToken returns a request carrying the raw store token.
func WithSessionToken(r *http.Request, token string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), tokenContextKey, token))
}

// GetSessionToken returns the raw store token for the current request,
// or "" when the request is unauthenticated.
func GetSessionToken(r *http.Request) string {
	token, _ := r.Context().Value(tokenContextKey).(string)
	return token
}
