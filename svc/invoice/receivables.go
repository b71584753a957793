package invoice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/logger"
)

// Receivable is an unpaid invoice with its distance to the due date.
// DaysUntilDue is negative once the invoice is overdue.
type Receivable struct {
	Invoice
	DaysUntilDue int  `json:"days_until_due"`
	IsOverdue    bool `json:"is_overdue"`
}

type Receivables struct {
	Invoices         []Receivable `json:"invoices"`
	TotalOutstanding float64      `json:"total_outstanding"`
	OverdueAmount    float64      `json:"overdue_amount"`
	UnpaidCount      int          `json:"unpaid_count"`
}

// SweepOverdue flips the user's sent invoices whose due date is before today
// to overdue. It only moves forward, so concurrent runs are harmless.
func (s *Service) SweepOverdue(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	n, err := s.invoices.MarkOverdue(ctx, userID, civil(now.In(s.loc), s.loc))
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	if n > 0 {
		s.observe(string(StatusOverdue), int(n))
	}
	return n, nil
}

// SweepAllOverdue runs the sweep for every user.
func (s *Service) SweepAllOverdue(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.invoices.MarkAllOverdue(ctx, civil(now.In(s.loc), s.loc))
	if err != nil {
		return 0, fmt.Errorf("mark overdue invoices: %w", err)
	}
	s.log.InfoContext(ctx, "overdue sweep finished",
		logger.Component("invoice"),
		slog.Int64("updated", n),
	)
	if n > 0 {
		s.observe(string(StatusOverdue), int(n))
	}
	return n, nil
}

// Receivables sweeps overdue invoices and lists sent and overdue invoices by due date.
func (s *Service) Receivables(ctx context.Context, userID uuid.UUID, now time.Time) (*Receivables, error) {
	if _, err := s.SweepOverdue(ctx, userID, now); err != nil {
		return nil, err
	}
	unpaid, err := s.invoices.ListUnpaid(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list unpaid invoices: %w", err)
	}

	today := civil(now.In(s.loc), s.loc)
	out := &Receivables{Invoices: make([]Receivable, 0, len(unpaid))}
	for _, inv := range unpaid {
		days := daysBetween(today, civil(inv.DueDate, s.loc))
		r := Receivable{Invoice: inv, DaysUntilDue: days, IsOverdue: days < 0}
		out.Invoices = append(out.Invoices, r)
		out.TotalOutstanding += inv.Total
		if r.IsOverdue {
			out.OverdueAmount += inv.Total
		}
	}
	out.TotalOutstanding = round2(out.TotalOutstanding)
	out.OverdueAmount = round2(out.OverdueAmount)
	out.UnpaidCount = len(out.Invoices)
	return out, nil
}

// Aging splits outstanding amounts by days past due. Current includes
// invoices that are not yet due.
type Aging struct {
	Current    float64 `json:"current"`
	Days31To60 float64 `json:"31-60"`
	Days61To90 float64 `json:"61-90"`
	Over90     float64 `json:"90+"`
}

type Statement struct {
	Customer    *Customer `json:"customer"`
	Invoices    []Invoice `json:"invoices"`
	TotalSales  float64   `json:"total_sales"`
	Paid        float64   `json:"paid"`
	Outstanding float64   `json:"outstanding"`
	Aging       Aging     `json:"aging"`
}

// BuildStatement totals a customer's invoices. Anything not paid, drafts
// included, is outstanding.
func BuildStatement(c *Customer, invoices []Invoice, today time.Time) *Statement {
	st := &Statement{Customer: c, Invoices: invoices}
	for _, inv := range invoices {
		st.TotalSales += inv.Total
		if inv.Status == StatusPaid {
			st.Paid += inv.Total
			continue
		}
		st.Outstanding += inv.Total

		overdue := daysBetween(civil(inv.DueDate, today.Location()), today)
		switch {
		case overdue <= 30:
			st.Aging.Current += inv.Total
		case overdue <= 60:
			st.Aging.Days31To60 += inv.Total
		case overdue <= 90:
			st.Aging.Days61To90 += inv.Total
		default:
			st.Aging.Over90 += inv.Total
		}
	}
	st.TotalSales = round2(st.TotalSales)
	st.Paid = round2(st.Paid)
	st.Outstanding = round2(st.Outstanding)
	st.Aging = Aging{
		Current:    round2(st.Aging.Current),
		Days31To60: round2(st.Aging.Days31To60),
		Days61To90: round2(st.Aging.Days61To90),
		Over90:     round2(st.Aging.Over90),
	}
	return st
}

// CustomerStatement returns the customer's invoices, newest first, with aging.
func (s *Service) CustomerStatement(ctx context.Context, userID, customerID uuid.UUID, now time.Time) (*Statement, error) {
	c, err := s.customers.Get(ctx, userID, customerID)
	if err != nil {
		return nil, err
	}
	invoices, err := s.invoices.ListByCustomer(ctx, userID, customerID)
	if err != nil {
		return nil, fmt.Errorf("list customer invoices: %w", err)
	}
	return BuildStatement(c, invoices, civil(now.In(s.loc), s.loc)), nil
}
