package ratelimiter_test

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicer/pkg/ratelimiter"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestAllow(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := ratelimiter.New(ratelimiter.Config{PerMinute: 6, Burst: 2}, ratelimiter.WithClock(clock.Now))

	first := l.Allow("u1")
	require.True(t, first.Allowed)
	assert.Equal(t, 1, first.Remaining)
	assert.True(t, l.Allow("u1").Allowed)

	denied := l.Allow("u1")
	assert.False(t, denied.Allowed)
	assert.InDelta(t, float64(10*time.Second), float64(denied.RetryAfter), float64(time.Millisecond))

	assert.True(t, l.Allow("u2").Allowed, "keys are independent")

	clock.Advance(10 * time.Second)
	assert.True(t, l.Allow("u1").Allowed)
	assert.False(t, l.Allow("u1").Allowed)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{t: time.Now()}
	l := ratelimiter.New(ratelimiter.Config{PerMinute: 1, Burst: 1}, ratelimiter.WithClock(clock.Now))
	key := func(r *http.Request) string { return r.Header.Get("X-User") }
	h := ratelimiter.Middleware(l, key, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		if user != "" {
			req.Header.Set("X-User", user)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do("a").Code)
	rec := do("a")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusOK, do("").Code, "empty key is not limited")
	assert.Equal(t, http.StatusOK, do("").Code)
}
