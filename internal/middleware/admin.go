package middleware

import (
	"crypto/subtle"
	"net/http"

	"arcadeswap-api/pkg/apierror"
)

// NewLoginKeyMiddleware guards admin routes with the X-Login-Key header.
// With no key configured every admin request is refused.
func NewLoginKeyMiddleware(loginKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if loginKey == "" {
				writeError(w, apierror.Forbidden("Admin access is disabled"))
				return
			}

			provided := r.Header.Get("X-Login-Key")
			if provided == "" {
				writeError(w, apierror.Unauthorized("X-Login-Key header required"))
				return
			}
			if subtle.ConstantTimeCompare([]byte(provided), []byte(loginKey)) != 1 {
				writeError(w, apierror.Forbidden("Invalid login key"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
