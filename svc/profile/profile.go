// Package profile manages the per-user business profile shown on invoices.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/pkg/file"
	"github.com/dmitrymomot/invoicer/pkg/logger"
)

// Template selects the invoice layout.
type Template string

const (
	TemplateClassic Template = "classic"
	TemplateModern  Template = "modern"
	TemplateMinimal Template = "minimal"
)

// MaxLogoSize is the default upload limit for logos.
const MaxLogoSize int64 = 2 << 20

var (
	ErrProfileNotFound = errors.New("business profile not found")
	ErrInvalidLogo     = errors.New("logo must be a PNG, JPEG, GIF or WebP image up to 2MB")
	ErrStorageDisabled = errors.New("logo storage is not configured")
)

// BusinessProfile is the one-per-user display data for invoices.
type BusinessProfile struct {
	UserID          uuid.UUID `json:"-"`
	BusinessName    string    `json:"business_name"`
	Email           string    `json:"email"`
	Phone           string    `json:"phone"`
	Address         string    `json:"address"`
	City            string    `json:"city"`
	State           string    `json:"state"`
	PostalCode      string    `json:"postal_code"`
	Country         string    `json:"country"`
	TaxID           string    `json:"tax_id"`
	Website         string    `json:"website"`
	UPIID           string    `json:"upi_id"`
	LogoURL         string    `json:"logo_url"`
	InvoiceTemplate Template  `json:"invoice_template"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// DisplayName returns the business name, or fallback when unset.
func (p *BusinessProfile) DisplayName(fallback string) string {
	if p == nil || strings.TrimSpace(p.BusinessName) == "" {
		return fallback
	}
	return p.BusinessName
}

// Input is the editable part of a profile.
type Input struct {
	BusinessName    string   `json:"business_name" validate:"required,max=200"`
	Email           string   `json:"email" validate:"omitempty,email,max=254"`
	Phone           string   `json:"phone" validate:"max=32"`
	Address         string   `json:"address" validate:"max=500"`
	City            string   `json:"city" validate:"max=100"`
	State           string   `json:"state" validate:"max=100"`
	PostalCode      string   `json:"postal_code" validate:"max=20"`
	Country         string   `json:"country" validate:"max=100"`
	TaxID           string   `json:"tax_id" validate:"max=50"`
	Website         string   `json:"website" validate:"omitempty,url,max=300"`
	UPIID           string   `json:"upi_id" validate:"omitempty,upi"`
	InvoiceTemplate Template `json:"invoice_template" validate:"omitempty,oneof=classic modern minimal"`
}

// Store persists profiles. Get returns ErrProfileNotFound when the user has none.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (*BusinessProfile, error)
	Upsert(ctx context.Context, p *BusinessProfile) error
	SetLogoURL(ctx context.Context, userID uuid.UUID, url string) error
}

var upiPattern = regexp.MustCompile(`^[a-zA-Z0-9.\-_]{2,256}@[a-zA-Z][a-zA-Z0-9.\-]{1,64}$`)

// RegisterValidations adds the "upi" tag to v.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("upi", func(fl validator.FieldLevel) bool {
		return upiPattern.MatchString(fl.Field().String())
	})
}

type Option func(*Service)

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithValidator replaces the default validator. The "upi" tag is registered on it.
func WithValidator(v *validator.Validate) Option {
	return func(s *Service) {
		if v != nil {
			s.validate = v
		}
	}
}

// WithStorage enables logo uploads.
func WithStorage(st file.Storage) Option {
	return func(s *Service) { s.storage = st }
}

func WithMaxLogoSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLogo = n
		}
	}
}

type Service struct {
	store    Store
	storage  file.Storage
	validate *validator.Validate
	log      *slog.Logger
	maxLogo  int64
	now      func() time.Time
}

func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("profile: store is required")
	}
	s := &Service{
		store:    store,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      slog.Default(),
		maxLogo:  MaxLogoSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	RegisterValidations(s.validate)
	return s
}

// Get returns the stored profile, or an empty classic profile for new users.
func (s *Service) Get(ctx context.Context, userID uuid.UUID) (*BusinessProfile, error) {
	p, err := s.store.Get(ctx, userID)
	if errors.Is(err, ErrProfileNotFound) {
		return &BusinessProfile{UserID: userID, InvoiceTemplate: TemplateClassic}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get business profile: %w", err)
	}
	if p.InvoiceTemplate == "" {
		p.InvoiceTemplate = TemplateClassic
	}
	return p, nil
}

// Upsert validates in and saves it, keeping the current logo.
func (s *Service) Upsert(ctx context.Context, userID uuid.UUID, in Input) (*BusinessProfile, error) {
	if err := s.validate.StructCtx(ctx, in); err != nil {
		return nil, err
	}
	current, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	tpl := in.InvoiceTemplate
	if tpl == "" {
		tpl = TemplateClassic
	}
	p := &BusinessProfile{
		UserID:          userID,
		BusinessName:    strings.TrimSpace(in.BusinessName),
		Email:           strings.ToLower(strings.TrimSpace(in.Email)),
		Phone:           strings.TrimSpace(in.Phone),
		Address:         strings.TrimSpace(in.Address),
		City:            strings.TrimSpace(in.City),
		State:           strings.TrimSpace(in.State),
		PostalCode:      strings.TrimSpace(in.PostalCode),
		Country:         strings.TrimSpace(in.Country),
		TaxID:           strings.TrimSpace(in.TaxID),
		Website:         strings.TrimSpace(in.Website),
		UPIID:           strings.TrimSpace(in.UPIID),
		LogoURL:         current.LogoURL,
		InvoiceTemplate: tpl,
		UpdatedAt:       s.now(),
	}
	if err := s.store.Upsert(ctx, p); err != nil {
		return nil, fmt.Errorf("save business profile: %w", err)
	}
	s.log.InfoContext(ctx, "business profile saved",
		logger.Component("profile"),
		logger.UserID(userID),
	)
	return p, nil
}

// UploadLogo stores an image and points the profile at it.
func (s *Service) UploadLogo(ctx context.Context, userID uuid.UUID, fh *multipart.FileHeader) (string, error) {
	if s.storage == nil {
		return "", ErrStorageDisabled
	}
	if err := file.ValidateSize(fh, s.maxLogo); err != nil {
		return "", errors.Join(ErrInvalidLogo, err)
	}
	if err := file.ValidateMIMEType(fh, file.ImageMIMETypes...); err != nil {
		return "", errors.Join(ErrInvalidLogo, err)
	}

	path := fmt.Sprintf("logos/%s/%d%s", userID, s.now().Unix(), file.GetExtension(fh))
	stored, err := s.storage.Save(ctx, fh, path)
	if err != nil {
		return "", fmt.Errorf("store logo: %w", err)
	}

	if err := s.store.SetLogoURL(ctx, userID, stored.URL); err != nil {
		if derr := s.storage.Delete(ctx, stored.Path); derr != nil {
			s.log.WarnContext(ctx, "orphaned logo left in storage",
				logger.Component("profile"),
				logger.UserID(userID),
				logger.Error(derr),
			)
		}
		return "", fmt.Errorf("save logo url: %w", err)
	}

	s.log.InfoContext(ctx, "logo uploaded",
		logger.Component("profile"),
		logger.UserID(userID),
		slog.Int64("size", stored.Size),
	)
	return stored.URL, nil
}
