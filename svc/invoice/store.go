package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/svc/entitlement"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

// CustomerStore persists customers. Lookups return ErrCustomerNotFound.
type CustomerStore interface {
	FindByEmail(ctx context.Context, userID uuid.UUID, email string) (*Customer, error)
	Insert(ctx context.Context, c *Customer) error
	Get(ctx context.Context, userID, id uuid.UUID) (*Customer, error)
	List(ctx context.Context, userID uuid.UUID) ([]Customer, error)
	Count(ctx context.Context, userID uuid.UUID) (int, error)
}

// Summary aggregates a user's invoices.
type Summary struct {
	InvoiceCount int     `json:"invoice_count"`
	Revenue      float64 `json:"revenue"`
	Outstanding  float64 `json:"outstanding"`
}

// InvoiceStore persists invoices. Lookups return ErrInvoiceNotFound.
type InvoiceStore interface {
	CreateWithItems(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, userID, id uuid.UUID) (*Invoice, error)
	List(ctx context.Context, userID uuid.UUID) ([]Invoice, error)
	ListByCustomer(ctx context.Context, userID, customerID uuid.UUID) ([]Invoice, error)
	ListUnpaid(ctx context.Context, userID uuid.UUID) ([]Invoice, error)
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Invoice, error)
	Summary(ctx context.Context, userID uuid.UUID) (Summary, error)
	// UpdateStatus changes status only while it still equals from.
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, from, to Status) (bool, error)
	MarkOverdue(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error)
	MarkAllOverdue(ctx context.Context, now time.Time) (int64, error)
	CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error)
}

// Gate decides whether another invoice may be created.
type Gate interface {
	CheckInvoiceLimit(ctx context.Context, userID uuid.UUID) (entitlement.Result, error)
}

// ProfileReader supplies business details for emails, reminders and QR codes.
type ProfileReader interface {
	Get(ctx context.Context, userID uuid.UUID) (*profile.BusinessProfile, error)
}
