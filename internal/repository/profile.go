package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/pg"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

type ProfileRepository struct {
	db DB
}

func NewProfileRepository(db DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) Get(ctx context.Context, userID uuid.UUID) (*profile.BusinessProfile, error) {
	var p profile.BusinessProfile
	err := r.db.QueryRow(ctx, `
		SELECT user_id, business_name, email, phone, address, city, state, postal_code, country,
			tax_id, website, upi_id, logo_url, invoice_template, updated_at
		FROM business_profiles WHERE user_id = $1
	`, userID).Scan(
		&p.UserID, &p.BusinessName, &p.Email, &p.Phone, &p.Address, &p.City, &p.State, &p.PostalCode,
		&p.Country, &p.TaxID, &p.Website, &p.UPIID, &p.LogoURL, &p.InvoiceTemplate, &p.UpdatedAt,
	)
	if pg.IsNotFoundError(err) {
		return nil, profile.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load business profile: %w", err)
	}
	return &p, nil
}

// Upsert writes every field except logo_url, which only SetLogoURL changes.
func (r *ProfileRepository) Upsert(ctx context.Context, p *profile.BusinessProfile) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO business_profiles (user_id, business_name, email, phone, address, city, state,
			postal_code, country, tax_id, website, upi_id, logo_url, invoice_template, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (user_id) DO UPDATE SET
			business_name = EXCLUDED.business_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			postal_code = EXCLUDED.postal_code,
			country = EXCLUDED.country,
			tax_id = EXCLUDED.tax_id,
			website = EXCLUDED.website,
			upi_id = EXCLUDED.upi_id,
			invoice_template = EXCLUDED.invoice_template,
			updated_at = EXCLUDED.updated_at
	`, p.UserID, p.BusinessName, p.Email, p.Phone, p.Address, p.City, p.State, p.PostalCode,
		p.Country, p.TaxID, p.Website, p.UPIID, p.LogoURL, p.InvoiceTemplate, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert business profile: %w", err)
	}
	return nil
}

// SetLogoURL creates a default profile when the user has none yet.
func (r *ProfileRepository) SetLogoURL(ctx context.Context, userID uuid.UUID, url string) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO business_profiles (user_id, logo_url)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET logo_url = EXCLUDED.logo_url, updated_at = NOW()
	`, userID, url)
	if err != nil {
		return fmt.Errorf("failed to set logo url: %w", err)
	}
	return nil
}
