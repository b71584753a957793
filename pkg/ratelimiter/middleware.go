package ratelimiter

import (
	"math"
	"net/http"
	"strconv"
)

// KeyFunc returns the bucket key for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// DeniedFunc renders a rejected request.
type DeniedFunc func(w http.ResponseWriter, r *http.Request, res Result)

// Middleware sets X-RateLimit headers and rejects requests over the limit.
func Middleware(l *Limiter, key KeyFunc, denied DeniedFunc) func(http.Handler) http.Handler {
	if denied == nil {
		denied = func(w http.ResponseWriter, _ *http.Request, _ Result) {
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}

			res := l.Allow(k)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			if !res.Allowed {
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
				denied(w, r, res)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
