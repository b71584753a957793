package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/invoicer/pkg/pg"
	"github.com/dmitrymomot/invoicer/svc/invoice"
)

type CustomerRepository struct {
	db DB
}

func NewCustomerRepository(db DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = `id, user_id, name, email, phone, address, created_at`

func scanCustomer(row pgx.Row) (invoice.Customer, error) {
	var c invoice.Customer
	err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Email, &c.Phone, &c.Address, &c.CreatedAt)
	return c, err
}

func (r *CustomerRepository) one(ctx context.Context, query string, args ...any) (*invoice.Customer, error) {
	c, err := scanCustomer(r.db.QueryRow(ctx, query, args...))
	if pg.IsNotFoundError(err) {
		return nil, invoice.ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}
	return &c, nil
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, userID uuid.UUID, email string) (*invoice.Customer, error) {
	return r.one(ctx, `SELECT `+customerColumns+` FROM customers WHERE user_id = $1 AND email = $2`, userID, email)
}

func (r *CustomerRepository) Get(ctx context.Context, userID, id uuid.UUID) (*invoice.Customer, error) {
	return r.one(ctx, `SELECT `+customerColumns+` FROM customers WHERE user_id = $1 AND id = $2`, userID, id)
}

// Insert adds c. A concurrent insert of the same email keeps the first row
// and c is refreshed from it.
func (r *CustomerRepository) Insert(ctx context.Context, c *invoice.Customer) error {
	query := `
		INSERT INTO customers (id, user_id, name, email, phone, address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, email) DO UPDATE SET email = EXCLUDED.email
		RETURNING ` + customerColumns
	stored, err := scanCustomer(r.db.QueryRow(ctx, query,
		c.ID, c.UserID, c.Name, c.Email, c.Phone, c.Address, c.CreatedAt,
	))
	if err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	*c = stored
	return nil
}

func (r *CustomerRepository) List(ctx context.Context, userID uuid.UUID) ([]invoice.Customer, error) {
	rows, err := r.db.Query(ctx, `SELECT `+customerColumns+` FROM customers WHERE user_id = $1 ORDER BY name`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (invoice.Customer, error) {
		return scanCustomer(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan customers: %w", err)
	}
	return list, nil
}

func (r *CustomerRepository) Count(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count customers: %w", err)
	}
	return n, nil
}
