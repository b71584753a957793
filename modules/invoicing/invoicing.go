// Package invoicing serves invoices, customers, receivables, the business
// profile and AI-assisted invoice drafting.
package invoicing

import (
	"context"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/handler"
	"github.com/dmitrymomot/invoicer/pkg/gemini"
	"github.com/dmitrymomot/invoicer/pkg/ratelimiter"
	"github.com/dmitrymomot/invoicer/svc/invoice"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

// Invoices is implemented by *invoice.Service.
type Invoices interface {
	Create(ctx context.Context, userID uuid.UUID, p invoice.CreateParams) (*invoice.Invoice, error)
	List(ctx context.Context, userID uuid.UUID) ([]invoice.Invoice, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*invoice.Invoice, error)
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, to invoice.Status) (*invoice.Invoice, error)
	ListCustomers(ctx context.Context, userID uuid.UUID) ([]invoice.Customer, error)
	Receivables(ctx context.Context, userID uuid.UUID, now time.Time) (*invoice.Receivables, error)
	CustomerStatement(ctx context.Context, userID, customerID uuid.UUID, now time.Time) (*invoice.Statement, error)
	Reminder(ctx context.Context, userID, customerID uuid.UUID) (*invoice.Reminder, error)
	Dashboard(ctx context.Context, userID uuid.UUID) (*invoice.Dashboard, error)
	PaymentQR(ctx context.Context, userID, id uuid.UUID) ([]byte, error)
}

// Profiles is implemented by *profile.Service.
type Profiles interface {
	Get(ctx context.Context, userID uuid.UUID) (*profile.BusinessProfile, error)
	Upsert(ctx context.Context, userID uuid.UUID, in profile.Input) (*profile.BusinessProfile, error)
	UploadLogo(ctx context.Context, userID uuid.UUID, fh *multipart.FileHeader) (string, error)
}

// Parser turns a free-text prompt into invoice fields.
type Parser interface {
	ParseInvoice(ctx context.Context, prompt string, today time.Time) (*gemini.ParsedInvoice, error)
}

type Option func(*Service)

// WithParser enables POST /ai/parse-invoice, limited per user by limiter
// when one is given.
func WithParser(p Parser, limiter *ratelimiter.Limiter) Option {
	return func(s *Service) {
		s.parser = p
		s.limiter = limiter
	}
}

// WithAIObserver is called with the outcome of every parse request.
func WithAIObserver(fn func(outcome string)) Option {
	return func(s *Service) {
		if fn != nil {
			s.observeAI = fn
		}
	}
}

func WithValidator(v *validator.Validate) Option {
	return func(s *Service) {
		if v != nil {
			s.validate = v
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMaxUploadSize caps multipart request bodies.
func WithMaxUploadSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUpload = n
		}
	}
}

type Service struct {
	invoices     Invoices
	profiles     Profiles
	parser       Parser
	limiter      *ratelimiter.Limiter
	validate     *validator.Validate
	observeAI    func(string)
	now          func() time.Time
	log          *slog.Logger
	maxUpload    int64
	errorHandler handler.ErrorHandler[handler.Context]
}

func NewService(
	invoices Invoices,
	profiles Profiles,
	errorHandler handler.ErrorHandler[handler.Context],
	opts ...Option,
) *Service {
	if invoices == nil || profiles == nil {
		panic("invoicing: invoices and profiles are required")
	}
	s := &Service{
		invoices:     invoices,
		profiles:     profiles,
		validate:     handler.NewValidator(),
		observeAI:    func(string) {},
		now:          time.Now,
		log:          slog.Default(),
		maxUpload:    4 << 20,
		errorHandler: errorHandler,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}
