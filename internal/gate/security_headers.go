package gate

import "net/http"

// SecurityHeaders returns a middleware that attaches the fixed hardening
// headers to every response. It never rejects.
func SecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// X-Content-Type-Options: nosniff prevents browsers from
			// MIME-sniffing a response away from the declared Content-Type
			w.Header().Set("X-Content-Type-Options", "nosniff")

			// X-Frame-Options: DENY prevents the page from being framed at all
			w.Header().Set("X-Frame-Options", "DENY")

			// Responses carry account data and search results; never cache
			w.Header().Set("Cache-Control", "no-store")
			w.Header().Set("Pragma", "no-cache")

			// Referrer-Policy: subject queries must not leak via referrers
			w.Header().Set("Referrer-Policy", "no-referrer")

			next.ServeHTTP(w, r)
		})
	}
}
