package ratelimiter

import (
	"math"
	"time"

	"golang.org/x/time/rate"

	"github.com/dmitrymomot/invoicer/pkg/cache"
)

type Config struct {
	PerMinute int `env:"AI_RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	Burst     int `env:"AI_RATE_LIMIT_BURST" envDefault:"3"`
	MaxKeys   int `env:"AI_RATE_LIMIT_MAX_KEYS" envDefault:"10000"`
}

// Result describes one decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Option func(*Limiter)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	every   rate.Limit
	burst   int
	buckets *cache.LRU[string, *rate.Limiter]
	now     func() time.Time
}

func New(cfg Config, opts ...Option) *Limiter {
	if cfg.PerMinute <= 0 {
		cfg.PerMinute = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.MaxKeys <= 0 {
		cfg.MaxKeys = 10000
	}
	l := &Limiter{
		every: rate.Every(time.Minute / time.Duration(cfg.PerMinute)),
		burst: cfg.Burst,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.buckets = cache.NewLRU[string, *rate.Limiter](cfg.MaxKeys, cache.WithTTL(time.Hour), cache.WithClock(l.now))
	return l
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	if b, ok := l.buckets.Get(key); ok {
		return b
	}
	b := rate.NewLimiter(l.every, l.burst)
	if l.buckets.PutIfAbsent(key, b) {
		return b
	}
	if existing, ok := l.buckets.Get(key); ok {
		return existing
	}
	return b
}

// Allow consumes one token for key when available.
func (l *Limiter) Allow(key string) Result {
	now := l.now()
	b := l.bucket(key)

	res := Result{Limit: l.burst}
	r := b.ReserveN(now, 1)
	if !r.OK() {
		res.RetryAfter = time.Minute
		return res
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		res.RetryAfter = delay
		return res
	}
	res.Allowed = true
	res.Remaining = max(int(math.Floor(b.TokensAt(now))), 0)
	return res
}
