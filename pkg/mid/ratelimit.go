package mid

import (
	"net/http"

	"github.com/brownbiotech/longevita/pkg/resilience"
)

// RateLimit returns middleware that rejects requests with 429 once the token
// bucket is empty. One bucket for the whole server, not per client.
func RateLimit(l *resilience.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow() {
				w.Header().Set("Retry-After", "1")
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
