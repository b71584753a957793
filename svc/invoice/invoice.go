// Package invoice implements customers, invoices and receivables for a single
// business owner. Every operation is scoped by the owning user id.
package invoice

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/statemachine"
)

// Status is the invoice lifecycle position.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// Unpaid reports whether the invoice still counts as receivable.
func (s Status) Unpaid() bool {
	return s == StatusSent || s == StatusOverdue
}

// DefaultPaymentTerm is added to the issue date when no due date is given.
const DefaultPaymentTerm = 30 * 24 * time.Hour

var (
	ErrInvoiceNotFound    = errors.New("invoice not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrDailyLimitReached  = errors.New("Daily invoice limit reached. Upgrade to Pro for unlimited invoices.")
	ErrInvalidTransition  = errors.New("invoice status change not allowed")
	ErrStatusConflict     = errors.New("invoice status changed concurrently")
	ErrNoUPIID            = errors.New("add a UPI ID to your business profile to accept QR payments")
	ErrNothingOutstanding = errors.New("customer has no outstanding invoices")
	ErrNoPhone            = errors.New("customer has no phone number")
)

type Customer struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"-"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Item struct {
	ID          uuid.UUID `json:"id"`
	InvoiceID   uuid.UUID `json:"-"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   float64   `json:"unit_price"`
	Amount      float64   `json:"amount"`
}

type Invoice struct {
	ID         uuid.UUID `json:"id"`
	UserID     uuid.UUID `json:"-"`
	CustomerID uuid.UUID `json:"customer_id"`
	Number     string    `json:"invoice_number"`
	IssueDate  time.Time `json:"issue_date"`
	DueDate    time.Time `json:"due_date"`
	Status     Status    `json:"status"`
	Subtotal   float64   `json:"subtotal"`
	TaxRate    float64   `json:"tax_rate"`
	Total      float64   `json:"total"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	Items      []Item    `json:"items,omitempty"`
	Customer   *Customer `json:"customer,omitempty"`
}

// TaxAmount is the difference between total and subtotal.
func (inv *Invoice) TaxAmount() float64 {
	return round2(inv.Total - inv.Subtotal)
}

// CustomerName returns the joined customer name, if loaded.
func (inv *Invoice) CustomerName() string {
	if inv.Customer == nil {
		return ""
	}
	return inv.Customer.Name
}

type event string

const (
	eventSend event = "send"
	eventPay  event = "pay"
	eventLate event = "late"
)

// flow only moves forward. Overdue is reached by the sweep, not by users.
var flow = statemachine.MustNew(
	statemachine.T([]Status{StatusDraft}, eventSend, StatusSent),
	statemachine.T([]Status{StatusSent, StatusOverdue}, eventPay, StatusPaid),
	statemachine.T([]Status{StatusSent}, eventLate, StatusOverdue),
)

func eventFor(target Status) (event, bool) {
	switch target {
	case StatusSent:
		return eventSend, true
	case StatusPaid:
		return eventPay, true
	case StatusOverdue:
		return eventLate, true
	}
	return "", false
}

// CanTransition reports whether an invoice in from may move to to.
func CanTransition(from, to Status) bool {
	ev, ok := eventFor(to)
	return ok && flow.Can(from, ev)
}
