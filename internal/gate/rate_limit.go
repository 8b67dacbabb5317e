package gate

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	pkghttp "github.com/querydesk/querydesk/pkg/http"
)

// RateLimit limits requests per client IP within the window.
func RateLimit(limit int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		limit,
		window,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests, please try again later.")
		}),
	)
}
