package invoice_test

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/svc/invoice"
)

// memStore is an in-memory CustomerStore and InvoiceStore.
type memStore struct {
	mu        sync.Mutex
	customers map[uuid.UUID]invoice.Customer
	invoices  map[uuid.UUID]invoice.Invoice
	inserts   int
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[uuid.UUID]invoice.Customer{},
		invoices:  map[uuid.UUID]invoice.Invoice{},
	}
}

func (m *memStore) FindByEmail(_ context.Context, userID uuid.UUID, email string) (*invoice.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.UserID == userID && c.Email == email {
			return &c, nil
		}
	}
	return nil, invoice.ErrCustomerNotFound
}

func (m *memStore) Insert(_ context.Context, c *invoice.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = *c
	return nil
}

func (m *memStore) Get(_ context.Context, userID, id uuid.UUID) (*invoice.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.customers[id]
	if !ok || c.UserID != userID {
		return nil, invoice.ErrCustomerNotFound
	}
	return &c, nil
}

func (m *memStore) List(_ context.Context, userID uuid.UUID) ([]invoice.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []invoice.Customer
	for _, c := range m.customers {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memStore) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	list, _ := m.List(ctx, userID)
	return len(list), nil
}

// invoiceStore adapts memStore to InvoiceStore, whose method names overlap CustomerStore.
type invoiceStore struct{ *memStore }

func (s invoiceStore) CreateWithItems(_ context.Context, inv *invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *inv
	stored.Items = slices.Clone(inv.Items)
	stored.Customer = nil
	s.invoices[inv.ID] = stored
	s.inserts++
	return nil
}

func (s invoiceStore) withCustomer(inv invoice.Invoice) invoice.Invoice {
	if c, ok := s.customers[inv.CustomerID]; ok {
		inv.Customer = &c
	}
	return inv
}

func (s invoiceStore) Get(_ context.Context, userID, id uuid.UUID) (*invoice.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok || inv.UserID != userID {
		return nil, invoice.ErrInvoiceNotFound
	}
	inv = s.withCustomer(inv)
	return &inv, nil
}

func (s invoiceStore) filter(userID uuid.UUID, keep func(invoice.Invoice) bool) []invoice.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []invoice.Invoice
	for _, inv := range s.invoices {
		if inv.UserID == userID && keep(inv) {
			out = append(out, s.withCustomer(inv))
		}
	}
	return out
}

func (s invoiceStore) List(_ context.Context, userID uuid.UUID) ([]invoice.Invoice, error) {
	out := s.filter(userID, func(invoice.Invoice) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s invoiceStore) ListByCustomer(_ context.Context, userID, customerID uuid.UUID) ([]invoice.Invoice, error) {
	out := s.filter(userID, func(inv invoice.Invoice) bool { return inv.CustomerID == customerID })
	sort.Slice(out, func(i, j int) bool { return out[i].IssueDate.After(out[j].IssueDate) })
	return out, nil
}

func (s invoiceStore) ListUnpaid(_ context.Context, userID uuid.UUID) ([]invoice.Invoice, error) {
	out := s.filter(userID, func(inv invoice.Invoice) bool { return inv.Status.Unpaid() })
	sort.Slice(out, func(i, j int) bool { return out[i].DueDate.Before(out[j].DueDate) })
	return out, nil
}

func (s invoiceStore) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]invoice.Invoice, error) {
	out, _ := s.List(ctx, userID)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s invoiceStore) Summary(_ context.Context, userID uuid.UUID) (invoice.Summary, error) {
	var sum invoice.Summary
	for _, inv := range s.filter(userID, func(invoice.Invoice) bool { return true }) {
		sum.InvoiceCount++
		switch {
		case inv.Status == invoice.StatusPaid:
			sum.Revenue += inv.Total
		case inv.Status.Unpaid():
			sum.Outstanding += inv.Total
		}
	}
	return sum, nil
}

func (s invoiceStore) UpdateStatus(_ context.Context, userID, id uuid.UUID, from, to invoice.Status) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv, ok := s.invoices[id]
	if !ok || inv.UserID != userID || inv.Status != from {
		return false, nil
	}
	inv.Status = to
	s.invoices[id] = inv
	return true, nil
}

func (s invoiceStore) markOverdue(match func(invoice.Invoice) bool, today time.Time) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, inv := range s.invoices {
		if match(inv) && inv.Status == invoice.StatusSent && inv.DueDate.Before(today) {
			inv.Status = invoice.StatusOverdue
			s.invoices[id] = inv
			n++
		}
	}
	return n
}

func (s invoiceStore) MarkOverdue(_ context.Context, userID uuid.UUID, today time.Time) (int64, error) {
	return s.markOverdue(func(inv invoice.Invoice) bool { return inv.UserID == userID }, today), nil
}

func (s invoiceStore) MarkAllOverdue(_ context.Context, today time.Time) (int64, error) {
	return s.markOverdue(func(invoice.Invoice) bool { return true }, today), nil
}

func (s invoiceStore) CountCreatedSince(_ context.Context, userID uuid.UUID, since time.Time) (int, error) {
	return len(s.filter(userID, func(inv invoice.Invoice) bool { return !inv.CreatedAt.Before(since) })), nil
}

// put stores an invoice directly, bypassing the service.
func (s invoiceStore) put(inv invoice.Invoice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = inv
}
