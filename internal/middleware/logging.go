package middleware

import (
	"log"
	"net/http"
	"time"
)

// quietPaths are polled by load balancers and only logged when they fail.
var quietPaths = map[string]bool{
	"/api/status":    true,
	"/api/v1/health": true,
	"/api/v1/ready":  true,
}

// Logging writes one [HTTP] access line per request, tagged with the request id.
func Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		if quietPaths[r.URL.Path] && rec.status < http.StatusInternalServerError {
			return
		}
		log.Printf("[HTTP] %s %s %d %dB %s rid=%s remote=%s",
			r.Method, r.URL.Path, rec.status, rec.bytes, time.Since(start),
			GetRequestID(r.Context()), r.RemoteAddr)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}
