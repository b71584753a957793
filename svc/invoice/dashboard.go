package invoice

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const recentLimit = 5

type Dashboard struct {
	InvoiceCount  int       `json:"invoice_count"`
	CustomerCount int       `json:"customer_count"`
	Revenue       float64   `json:"revenue"`
	Outstanding   float64   `json:"outstanding"`
	Recent        []Invoice `json:"recent"`
}

// Dashboard loads the overview figures concurrently.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	var (
		d       Dashboard
		summary Summary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		if summary, err = s.invoices.Summary(gctx, userID); err != nil {
			return fmt.Errorf("invoice summary: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if d.CustomerCount, err = s.customers.Count(gctx, userID); err != nil {
			return fmt.Errorf("count customers: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if d.Recent, err = s.invoices.Recent(gctx, userID, recentLimit); err != nil {
			return fmt.Errorf("recent invoices: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.InvoiceCount = summary.InvoiceCount
	d.Revenue = round2(summary.Revenue)
	d.Outstanding = round2(summary.Outstanding)
	if d.Recent == nil {
		d.Recent = []Invoice{}
	}
	return &d, nil
}
