package middleware

import (
	"log"
	"net/http"
	"runtime/debug"

	"arcadeswap-api/pkg/apierror"
)

// Recovery turns handler panics into a 500 envelope. http.ErrAbortHandler is
// re-raised so net/http can drop the connection as intended.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			log.Printf("[Recovery] panic rid=%s %s %s: %v\n%s",
				GetRequestID(r.Context()), r.Method, r.URL.Path, rec, debug.Stack())
			writeError(w, apierror.InternalError(""))
		}()

		next.ServeHTTP(w, r)
	})
}
