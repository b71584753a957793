// Package ratelimiter throttles expensive endpoints per key with token buckets
// from golang.org/x/time/rate. Buckets live in a bounded LRU so idle keys are
// forgotten.
//
//	lim := ratelimiter.New(ratelimiter.Config{PerMinute: 10, Burst: 3})
//	r.With(ratelimiter.Middleware(lim, userKey)).Post("/api/ai/parse-invoice", h)
package ratelimiter
