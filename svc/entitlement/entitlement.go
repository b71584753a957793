// Package entitlement decides whether a user may create another invoice today.
//
// Pro users are unlimited. Free users may create FreeDailyLimit invoices per
// calendar day in the service time zone. The check is advisory at form load
// and enforced again at insert time; concurrent submissions may overshoot the
// limit by a small amount.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/logger"
	"github.com/dmitrymomot/invoicer/pkg/subscription"
)

// FreeDailyLimit is the number of invoices a free user may create per day.
const FreeDailyLimit = 5

// SubscriptionReader returns subscription.ErrSubscriptionNotFound for users without a row.
type SubscriptionReader interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error)
}

// InvoiceCounter counts invoices created by a user at or after since.
type InvoiceCounter interface {
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Result is the outcome of a limit check. A nil Limit means unlimited.
type Result struct {
	CanCreate     bool `json:"canCreate"`
	InvoicesToday int  `json:"invoicesToday"`
	Limit         *int `json:"limit"`
	IsPro         bool `json:"isPro"`
}

// Remaining returns how many invoices are left today, or -1 when unlimited.
func (r Result) Remaining() int {
	if r.Limit == nil {
		return -1
	}
	return max(*r.Limit-r.InvoicesToday, 0)
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source used to find today's start.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the time zone whose midnight starts a new day.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger for fail-open warnings. Nil keeps slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// Service answers whether a user may create another invoice today.
type Service struct {
	subs    SubscriptionReader
	counter InvoiceCounter
	now     func() time.Time
	loc     *time.Location
	log     *slog.Logger
}

// NewService panics when the subscription reader or invoice counter is nil.
func NewService(subs SubscriptionReader, counter InvoiceCounter, opts ...Option) *Service {
	if subs == nil || counter == nil {
		panic("entitlement: subscription reader and invoice counter are required")
	}
	s := &Service{
		subs:    subs,
		counter: counter,
		now:     time.Now,
		loc:     time.Local,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckInvoiceLimit reports the user's invoice allowance for today.
//
// A missing subscription row is treated as free/active. A failing count is
// treated as zero so transient read errors do not block users; a failing
// subscription lookup is returned.
func (s *Service) CheckInvoiceLimit(ctx context.Context, userID uuid.UUID) (Result, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, subscription.ErrSubscriptionNotFound):
		sub = subscription.Free(userID)
	case err != nil:
		return Result{}, fmt.Errorf("load subscription: %w", err)
	}

	if sub.IsPro() {
		return Result{CanCreate: true, IsPro: true}, nil
	}

	count, err := s.counter.CountCreatedSince(ctx, userID, s.StartOfToday())
	if err != nil {
		s.log.WarnContext(ctx, "invoice count failed, allowing creation",
			logger.Component("entitlement"),
			logger.UserID(userID),
			logger.Error(err),
		)
		count = 0
	}

	limit := FreeDailyLimit
	return Result{
		CanCreate:     count < limit,
		InvoicesToday: count,
		Limit:         &limit,
	}, nil
}

// StartOfToday is local midnight in the configured location.
func (s *Service) StartOfToday() time.Time {
	now := s.now().In(s.loc)
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, s.loc)
}
