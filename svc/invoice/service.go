package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/email"
	"github.com/dmitrymomot/invoicer/pkg/logger"
)

// Observer is notified after invoices are created or change status.
type Observer func(action string, n int)

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLocation sets the zone used for calendar dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithLogger sets the logger. Nil keeps slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithRand replaces the source of invoice number suffixes.
func WithRand(intn func(n int) int) Option {
	return func(s *Service) {
		if intn != nil {
			s.intn = intn
		}
	}
}

// WithProfiles supplies business profiles for emails and payment QR codes.
func WithProfiles(p ProfileReader) Option {
	return func(s *Service) { s.profiles = p }
}

// WithMailer enables the email sent to customers when an invoice is sent.
func WithMailer(m email.EmailSender) Option {
	return func(s *Service) { s.mailer = m }
}

// WithObserver registers a callback for created invoices and status changes.
func WithObserver(o Observer) Option {
	return func(s *Service) {
		if o != nil {
			s.observe = o
		}
	}
}

// Service runs the invoice workflow on top of the customer and invoice stores.
type Service struct {
	customers CustomerStore
	invoices  InvoiceStore
	gate      Gate
	profiles  ProfileReader
	mailer    email.EmailSender
	log       *slog.Logger
	now       func() time.Time
	loc       *time.Location
	intn      func(int) int
	observe   Observer
}

// NewService panics when a required dependency is nil.
func NewService(customers CustomerStore, invoices InvoiceStore, gate Gate, opts ...Option) *Service {
	if customers == nil || invoices == nil || gate == nil {
		panic("invoice: customer store, invoice store and gate are required")
	}
	s := &Service{
		customers: customers,
		invoices:  invoices,
		gate:      gate,
		log:       slog.Default(),
		now:       time.Now,
		loc:       time.UTC,
		intn:      rand.IntN,
		observe:   func(string, int) {},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CustomerInput identifies the billed customer. Email is the upsert key.
type CustomerInput struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,email,max=254"`
	Phone   string `json:"phone" validate:"max=32"`
	Address string `json:"address" validate:"max=500"`
}

// CreateParams describes a new invoice. Zero dates take defaults. ClientTotal,
// when set, is stored as submitted; a nil ClientTotal stores the computed total.
type CreateParams struct {
	Customer    CustomerInput
	Items       []LineItem
	TaxRate     float64
	IssueDate   time.Time
	DueDate     time.Time
	Notes       string
	ClientTotal *float64
}

// Create stores a draft invoice after re-checking the daily quota.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, p CreateParams) (*Invoice, error) {
	res, err := s.gate.CheckInvoiceLimit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check invoice limit: %w", err)
	}
	if !res.CanCreate {
		return nil, ErrDailyLimitReached
	}

	cust, err := s.resolveCustomer(ctx, userID, p.Customer)
	if err != nil {
		return nil, err
	}

	totals := ComputeTotals(p.Items, p.TaxRate)
	total := totals.Total
	if p.ClientTotal != nil {
		total = round2(*p.ClientTotal)
		if total != totals.Total {
			s.log.WarnContext(ctx, "client total differs from computed total",
				logger.Component("invoice"),
				logger.UserID(userID),
				slog.Float64("client_total", *p.ClientTotal),
				slog.Float64("computed_total", totals.Total),
			)
		}
	}

	now := s.now()
	issue := p.IssueDate
	if issue.IsZero() {
		issue = now
	}
	issue = civil(issue, s.loc)
	due := p.DueDate
	if due.IsZero() {
		due = issue.Add(DefaultPaymentTerm)
	}
	due = civil(due, s.loc)

	inv := &Invoice{
		ID:         uuid.New(),
		UserID:     userID,
		CustomerID: cust.ID,
		IssueDate:  issue,
		DueDate:    due,
		Status:     StatusDraft,
		Subtotal:   totals.Subtotal,
		TaxRate:    p.TaxRate,
		Total:      total,
		Notes:      strings.TrimSpace(p.Notes),
		CreatedAt:  now,
		Customer:   cust,
	}
	inv.Items = make([]Item, 0, len(p.Items))
	for _, li := range p.Items {
		inv.Items = append(inv.Items, Item{
			ID:          uuid.New(),
			InvoiceID:   inv.ID,
			Description: strings.TrimSpace(li.Description),
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			Amount:      round2(li.Quantity * li.UnitPrice),
		})
	}

	inv.Number = NewInvoiceNumber(now.In(s.loc), s.intn)
	if err := s.invoices.CreateWithItems(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invoice: %w", err)
	}
	s.log.InfoContext(ctx, "invoice created",
		logger.Component("invoice"),
		logger.UserID(userID),
		logger.InvoiceID(inv.ID),
		slog.String("number", inv.Number),
	)
	s.observe("created", 1)
	return inv, nil
}

func (s *Service) resolveCustomer(ctx context.Context, userID uuid.UUID, in CustomerInput) (*Customer, error) {
	mail := strings.ToLower(strings.TrimSpace(in.Email))
	c, err := s.customers.FindByEmail(ctx, userID, mail)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, fmt.Errorf("find customer: %w", err)
	}

	c = &Customer{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      strings.TrimSpace(in.Name),
		Email:     mail,
		Phone:     strings.TrimSpace(in.Phone),
		Address:   strings.TrimSpace(in.Address),
		CreatedAt: s.now(),
	}
	if err := s.customers.Insert(ctx, c); err != nil {
		return nil, fmt.Errorf("insert customer: %w", err)
	}
	return c, nil
}

// List returns the user's invoices, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Invoice, error) {
	return s.invoices.List(ctx, userID)
}

// Get returns one invoice with its items and customer.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Invoice, error) {
	return s.invoices.Get(ctx, userID, id)
}

// ListCustomers returns the user's customers.
func (s *Service) ListCustomers(ctx context.Context, userID uuid.UUID) ([]Customer, error) {
	return s.customers.List(ctx, userID)
}

// UpdateStatus moves an invoice forward. Requesting the current status is a no-op.
func (s *Service) UpdateStatus(ctx context.Context, userID, id uuid.UUID, to Status) (*Invoice, error) {
	inv, err := s.invoices.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == to {
		return inv, nil
	}

	ev, ok := eventFor(to)
	if !ok {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, to)
	}
	next, err := flow.Next(inv.Status, ev)
	if err != nil {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, inv.Status, to)
	}

	updated, err := s.invoices.UpdateStatus(ctx, userID, id, inv.Status, next)
	if err != nil {
		return nil, fmt.Errorf("update invoice status: %w", err)
	}
	if !updated {
		return nil, ErrStatusConflict
	}

	from := inv.Status
	inv.Status = next
	s.log.InfoContext(ctx, "invoice status changed",
		logger.Component("invoice"),
		logger.UserID(userID),
		logger.InvoiceID(id),
		slog.String("from", string(from)),
		slog.String("to", string(next)),
	)
	s.observe(string(next), 1)

	if next == StatusSent {
		s.notifySent(ctx, userID, inv)
	}
	return inv, nil
}

// notifySent emails the customer. Failures are logged; the status change stands.
func (s *Service) notifySent(ctx context.Context, userID uuid.UUID, inv *Invoice) {
	if s.mailer == nil || inv.Customer == nil || inv.Customer.Email == "" {
		return
	}
	prof := s.profile(ctx, userID)

	data := email.InvoiceSentData{
		BusinessName:  prof.DisplayName(defaultBusinessName),
		CustomerName:  inv.Customer.Name,
		InvoiceNumber: inv.Number,
		IssueDate:     inv.IssueDate,
		DueDate:       inv.DueDate,
		Total:         FormatINR(inv.Total),
		Notes:         inv.Notes,
	}
	for _, it := range inv.Items {
		data.Items = append(data.Items, email.InvoiceSentItem{
			Description: it.Description,
			Quantity:    formatQuantity(it.Quantity),
			Amount:      FormatINR(it.Amount),
		})
	}

	body, err := email.Render(ctx, email.InvoiceSent(data))
	if err == nil {
		err = s.mailer.SendEmail(ctx, email.SendEmailParams{
			SendTo:   inv.Customer.Email,
			Subject:  email.InvoiceSentSubject(data),
			BodyHTML: body,
			BodyText: email.InvoiceSentText(data),
			Tag:      "invoice-sent",
			ReplyTo:  prof.Email,
		})
	}
	if err != nil {
		s.log.WarnContext(ctx, "invoice email not delivered",
			logger.Component("invoice"),
			logger.InvoiceID(inv.ID),
			logger.Error(err),
		)
	}
}
