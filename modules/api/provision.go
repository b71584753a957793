package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/cache"
	"github.com/dmitrymomot/invoicer/pkg/jwt"
	"github.com/dmitrymomot/invoicer/pkg/logger"
)

// Provisioner creates the default free subscription for a user.
type Provisioner interface {
	EnsureFree(ctx context.Context, userID uuid.UUID) error
}

type provisionConfig struct {
	capacity int
	ttl      time.Duration
	log      *slog.Logger
}

type ProvisionOption func(*provisionConfig)

// WithProvisionCache sizes the cache of users already provisioned.
func WithProvisionCache(capacity int, ttl time.Duration) ProvisionOption {
	return func(c *provisionConfig) {
		if capacity > 0 {
			c.capacity = capacity
		}
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithProvisionLogger(log *slog.Logger) ProvisionOption {
	return func(c *provisionConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// Provision makes sure every authenticated user has a subscription row.
// Failures are logged and the request continues; readers treat a missing
// row as free.
func Provision(p Provisioner, opts ...ProvisionOption) func(http.Handler) http.Handler {
	cfg := provisionConfig{capacity: 10000, ttl: time.Hour, log: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}
	seen := cache.NewLRU[uuid.UUID, struct{}](cfg.capacity, cache.WithTTL(cfg.ttl))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := jwt.UserID(r.Context())
			if ok {
				if _, done := seen.Get(userID); !done {
					if err := p.EnsureFree(r.Context(), userID); err != nil {
						cfg.log.WarnContext(r.Context(), "subscription provisioning failed",
							logger.Component("billing"),
							logger.UserID(userID),
							logger.Error(err),
						)
					} else {
						seen.Put(userID, struct{}{})
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
