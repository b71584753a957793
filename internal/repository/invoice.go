package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/invoicer/pkg/pg"
	"github.com/dmitrymomot/invoicer/svc/invoice"
)

type InvoiceRepository struct {
	db DB
}

func NewInvoiceRepository(db DB) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceSelect = `
	SELECT i.id, i.user_id, i.customer_id, i.invoice_number, i.issue_date, i.due_date, i.status,
		i.subtotal, i.tax_rate, i.total, i.notes, i.created_at,
		c.id, c.user_id, c.name, c.email, c.phone, c.address, c.created_at
	FROM invoices i
	JOIN customers c ON c.id = i.customer_id
`

func scanInvoice(row pgx.Row) (invoice.Invoice, error) {
	var (
		inv invoice.Invoice
		c   invoice.Customer
	)
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.CustomerID, &inv.Number, &inv.IssueDate, &inv.DueDate, &inv.Status,
		&inv.Subtotal, &inv.TaxRate, &inv.Total, &inv.Notes, &inv.CreatedAt,
		&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt,
	)
	if err != nil {
		return inv, err
	}
	inv.Customer = &c
	return inv, nil
}

func (r *InvoiceRepository) list(ctx context.Context, query string, args ...any) ([]invoice.Invoice, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoice.Invoice, error) {
		return scanInvoice(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoices: %w", err)
	}
	return list, nil
}

// CreateWithItems inserts the invoice and its items in one transaction.
func (r *InvoiceRepository) CreateWithItems(ctx context.Context, inv *invoice.Invoice) error {
	return pg.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO invoices (id, user_id, customer_id, invoice_number, issue_date, due_date, status,
				subtotal, tax_rate, total, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, inv.ID, inv.UserID, inv.CustomerID, inv.Number, inv.IssueDate, inv.DueDate, inv.Status,
			inv.Subtotal, inv.TaxRate, inv.Total, inv.Notes, inv.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert invoice: %w", err)
		}

		if len(inv.Items) == 0 {
			return nil
		}
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"invoice_items"},
			[]string{"id", "invoice_id", "position", "description", "quantity", "unit_price", "amount"},
			pgx.CopyFromSlice(len(inv.Items), func(i int) ([]any, error) {
				it := inv.Items[i]
				return []any{it.ID, inv.ID, i, it.Description, it.Quantity, it.UnitPrice, it.Amount}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("failed to insert invoice items: %w", err)
		}
		return nil
	})
}

func (r *InvoiceRepository) Get(ctx context.Context, userID, id uuid.UUID) (*invoice.Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, invoiceSelect+` WHERE i.user_id = $1 AND i.id = $2`, userID, id))
	if pg.IsNotFoundError(err) {
		return nil, invoice.ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice: %w", err)
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, invoice_id, description, quantity, unit_price, amount
		FROM invoice_items WHERE invoice_id = $1 ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load invoice items: %w", err)
	}
	inv.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoice.Item, error) {
		var it invoice.Item
		err := row.Scan(&it.ID, &it.InvoiceID, &it.Description, &it.Quantity, &it.UnitPrice, &it.Amount)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan invoice items: %w", err)
	}
	return &inv, nil
}

func (r *InvoiceRepository) List(ctx context.Context, userID uuid.UUID) ([]invoice.Invoice, error) {
	return r.list(ctx, invoiceSelect+` WHERE i.user_id = $1 ORDER BY i.created_at DESC`, userID)
}

func (r *InvoiceRepository) ListByCustomer(ctx context.Context, userID, customerID uuid.UUID) ([]invoice.Invoice, error) {
	return r.list(ctx, invoiceSelect+` WHERE i.user_id = $1 AND i.customer_id = $2 ORDER BY i.issue_date DESC`, userID, customerID)
}

func (r *InvoiceRepository) ListUnpaid(ctx context.Context, userID uuid.UUID) ([]invoice.Invoice, error) {
	return r.list(ctx, invoiceSelect+` WHERE i.user_id = $1 AND i.status IN ('sent', 'overdue') ORDER BY i.due_date`, userID)
}

func (r *InvoiceRepository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]invoice.Invoice, error) {
	return r.list(ctx, invoiceSelect+` WHERE i.user_id = $1 ORDER BY i.created_at DESC LIMIT $2`, userID, limit)
}

func (r *InvoiceRepository) Summary(ctx context.Context, userID uuid.UUID) (invoice.Summary, error) {
	var s invoice.Summary
	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(total) FILTER (WHERE status = 'paid'), 0),
			COALESCE(SUM(total) FILTER (WHERE status IN ('sent', 'overdue')), 0)
		FROM invoices WHERE user_id = $1
	`, userID).Scan(&s.InvoiceCount, &s.Revenue, &s.Outstanding)
	if err != nil {
		return s, fmt.Errorf("failed to summarise invoices: %w", err)
	}
	return s, nil
}

// UpdateStatus is a compare-and-set on status.
func (r *InvoiceRepository) UpdateStatus(ctx context.Context, userID, id uuid.UUID, from, to invoice.Status) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = $4 WHERE user_id = $1 AND id = $2 AND status = $3`,
		userID, id, from, to,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update invoice status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *InvoiceRepository) MarkOverdue(ctx context.Context, userID uuid.UUID, today time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = 'overdue' WHERE user_id = $1 AND status = 'sent' AND due_date < $2::date`,
		userID, today,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *InvoiceRepository) MarkAllOverdue(ctx context.Context, today time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET status = 'overdue' WHERE status = 'sent' AND due_date < $1::date`,
		today,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark overdue invoices: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *InvoiceRepository) CountCreatedSince(ctx context.Context, userID uuid.UUID, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count invoices: %w", err)
	}
	return n, nil
}
