// Package jobs runs periodic maintenance work on cron schedules.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dmitrymomot/invoicer/pkg/logger"
)

var ErrInvalidSchedule = errors.New("invalid cron schedule")

// Func is a unit of scheduled work.
type Func func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	log     *slog.Logger
	timeout time.Duration
	ctx     context.Context
}

type Option func(*Scheduler)

func WithLogger(log *slog.Logger) Option {
	return func(s *Scheduler) {
		if log != nil {
			s.log = log
		}
	}
}

// WithTimeout bounds each job run.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates a scheduler evaluating specs in loc.
func New(loc *time.Location, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		log:     slog.Default(),
		timeout: 5 * time.Minute,
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers fn under a standard five-field cron spec.
func (s *Scheduler) Add(name, spec string, fn Func) error {
	_, err := s.cron.AddFunc(spec, func() { s.run(name, fn) })
	if err != nil {
		return errors.Join(ErrInvalidSchedule, err)
	}
	return nil
}

func (s *Scheduler) run(name string, fn Func) {
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	start := time.Now()
	if err := fn(ctx); err != nil {
		s.log.ErrorContext(ctx, "scheduled job failed",
			logger.Component("jobs"),
			slog.String("job", name),
			logger.Duration(time.Since(start)),
			logger.Error(err),
		)
		return
	}
	s.log.DebugContext(ctx, "scheduled job finished",
		logger.Component("jobs"),
		slog.String("job", name),
		logger.Duration(time.Since(start)),
	)
}

// Run starts the scheduler and blocks until ctx is done, then waits for
// running jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.ctx = context.WithoutCancel(ctx)
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// OverdueSweeper flips unpaid invoices past their due date to overdue.
type OverdueSweeper interface {
	SweepAllOverdue(ctx context.Context, now time.Time) (int64, error)
}

// OverdueSweep is the job body for the nightly overdue sweep.
func OverdueSweep(sw OverdueSweeper, now func() time.Time, log *slog.Logger) Func {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context) error {
		n, err := sw.SweepAllOverdue(ctx, now())
		if err != nil {
			return err
		}
		if n > 0 {
			log.InfoContext(ctx, "invoices marked overdue",
				logger.Component("jobs"),
				slog.Int64("count", n),
			)
		}
		return nil
	}
}
