package invoicing

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/handler"
	"github.com/dmitrymomot/invoicer/pkg/binder"
	"github.com/dmitrymomot/invoicer/pkg/jwt"
	"github.com/dmitrymomot/invoicer/pkg/logger"
	"github.com/dmitrymomot/invoicer/pkg/ratelimiter"
	"github.com/dmitrymomot/invoicer/svc/invoice"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

const dateLayout = "2006-01-02"

// Routes registers the authenticated invoicing endpoints.
func (s *Service) Routes(r chi.Router) {
	r.Get("/invoices", handler.Wrap(s.listInvoices,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))
	r.Post("/invoices", handler.Wrap(s.createInvoice,
		handler.WithBinder[handler.Context, CreateInvoiceRequest](binder.JSON()),
		handler.WithDecorators(handler.Validate[handler.Context, CreateInvoiceRequest](s.validate)),
		handler.WithErrorHandler[handler.Context, CreateInvoiceRequest](s.errorHandler),
	))
	r.Get("/invoices/{id}", handler.Wrap(s.getInvoice,
		handler.WithBinder[handler.Context, ByID](binder.Path()),
		handler.WithErrorHandler[handler.Context, ByID](s.errorHandler),
	))
	r.Patch("/invoices/{id}/status", handler.Wrap(s.updateStatus,
		handler.WithBinders[handler.Context, UpdateStatusRequest](binder.JSON(), binder.Path()),
		handler.WithDecorators(handler.Validate[handler.Context, UpdateStatusRequest](s.validate)),
		handler.WithErrorHandler[handler.Context, UpdateStatusRequest](s.errorHandler),
	))
	r.Get("/invoices/{id}/qr", handler.Wrap(s.paymentQR,
		handler.WithBinder[handler.Context, ByID](binder.Path()),
		handler.WithErrorHandler[handler.Context, ByID](s.errorHandler),
	))
	r.Get("/receivables", handler.Wrap(s.receivables,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))
	r.Get("/dashboard", handler.Wrap(s.dashboard,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))
	r.Get("/customers", handler.Wrap(s.listCustomers,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))
	r.Get("/customers/{id}/statement", handler.Wrap(s.statement,
		handler.WithBinder[handler.Context, ByID](binder.Path()),
		handler.WithErrorHandler[handler.Context, ByID](s.errorHandler),
	))
	r.Get("/customers/{id}/reminder", handler.Wrap(s.reminder,
		handler.WithBinder[handler.Context, ByID](binder.Path()),
		handler.WithErrorHandler[handler.Context, ByID](s.errorHandler),
	))
	r.Get("/profile", handler.Wrap(s.getProfile,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))
	r.Put("/profile", handler.Wrap(s.saveProfile,
		handler.WithBinder[handler.Context, profile.Input](binder.JSON()),
		handler.WithErrorHandler[handler.Context, profile.Input](s.errorHandler),
	))
	r.Post("/profile/logo", handler.Wrap(s.uploadLogo,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))

	if s.parser != nil {
		parse := handler.Wrap(s.parseInvoice,
			handler.WithBinder[handler.Context, ParseRequest](binder.JSON()),
			handler.WithErrorHandler[handler.Context, ParseRequest](s.errorHandler),
		)
		if s.limiter != nil {
			r.With(ratelimiter.Middleware(s.limiter, userKey, s.aiDenied)).Post("/ai/parse-invoice", parse)
		} else {
			r.Post("/ai/parse-invoice", parse)
		}
	}
}

func userKey(r *http.Request) string {
	if id, ok := jwt.UserID(r.Context()); ok {
		return id.String()
	}
	return ""
}

func (s *Service) aiDenied(w http.ResponseWriter, r *http.Request, _ ratelimiter.Result) {
	s.observeAI("throttled")
	_ = handler.JSONError(ErrAIBusy).Render(w, r)
}

func currentUser(ctx context.Context) (uuid.UUID, error) {
	id, ok := jwt.UserID(ctx)
	if !ok {
		return uuid.Nil, handler.ErrUnauthorized
	}
	return id, nil
}

// fail classifies err and hands it to the error handler.
func fail(err error) handler.Response {
	return handler.Error(httpError(err))
}

type ByID struct {
	ID uuid.UUID `path:"id"`
}

type CreateInvoiceRequest struct {
	Customer  invoice.CustomerInput `json:"customer"`
	Items     []invoice.LineItem    `json:"items" validate:"required,min=1,max=100,dive"`
	TaxRate   float64               `json:"tax_rate" validate:"gte=0,lte=100"`
	IssueDate string                `json:"issue_date" validate:"omitempty,datetime=2006-01-02"`
	DueDate   string                `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes     string                `json:"notes" validate:"max=2000"`
	Total     *float64              `json:"total"`
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, _ := time.Parse(dateLayout, s)
	return t
}

func (s *Service) createInvoice(ctx handler.Context, req CreateInvoiceRequest) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	issue, due := parseDate(req.IssueDate), parseDate(req.DueDate)
	if !issue.IsZero() && !due.IsZero() && due.Before(issue) {
		verr := handler.NewValidationError()
		verr.Add("due_date", "must not be before issue_date")
		return handler.Error(verr)
	}

	inv, err := s.invoices.Create(ctx, userID, invoice.CreateParams{
		Customer:    req.Customer,
		Items:       req.Items,
		TaxRate:     req.TaxRate,
		IssueDate:   issue,
		DueDate:     due,
		Notes:       req.Notes,
		ClientTotal: req.Total,
	})
	if err != nil {
		return fail(err)
	}
	return handler.JSON(inv, handler.WithJSONStatus(http.StatusCreated))
}

func (s *Service) listInvoices(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	list, err := s.invoices.List(ctx, userID)
	if err != nil {
		return fail(err)
	}
	if list == nil {
		list = []invoice.Invoice{}
	}
	return handler.JSON(list)
}

func (s *Service) getInvoice(ctx handler.Context, req ByID) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	inv, err := s.invoices.Get(ctx, userID, req.ID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(inv)
}

type UpdateStatusRequest struct {
	ID     uuid.UUID      `json:"-" path:"id"`
	Status invoice.Status `json:"status" validate:"required,oneof=draft sent paid overdue"`
}

func (s *Service) updateStatus(ctx handler.Context, req UpdateStatusRequest) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	inv, err := s.invoices.UpdateStatus(ctx, userID, req.ID, req.Status)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(inv)
}

func (s *Service) paymentQR(ctx handler.Context, req ByID) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	png, err := s.invoices.PaymentQR(ctx, userID, req.ID)
	if err != nil {
		return fail(err)
	}
	return handler.Blob("image/png", png)
}

func (s *Service) receivables(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	rec, err := s.invoices.Receivables(ctx, userID, s.now())
	if err != nil {
		return fail(err)
	}
	return handler.JSON(rec)
}

func (s *Service) dashboard(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	d, err := s.invoices.Dashboard(ctx, userID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(d)
}

func (s *Service) listCustomers(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	list, err := s.invoices.ListCustomers(ctx, userID)
	if err != nil {
		return fail(err)
	}
	if list == nil {
		list = []invoice.Customer{}
	}
	return handler.JSON(list)
}

func (s *Service) statement(ctx handler.Context, req ByID) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	st, err := s.invoices.CustomerStatement(ctx, userID, req.ID, s.now())
	if err != nil {
		return fail(err)
	}
	return handler.JSON(st)
}

func (s *Service) reminder(ctx handler.Context, req ByID) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	rem, err := s.invoices.Reminder(ctx, userID, req.ID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(rem)
}

func (s *Service) getProfile(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(p)
}

func (s *Service) saveProfile(ctx handler.Context, req profile.Input) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	p, err := s.profiles.Upsert(ctx, userID, req)
	if err != nil {
		return fail(handler.ValidationErrorFrom(err))
	}
	return handler.JSON(p)
}

func (s *Service) uploadLogo(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}

	r := ctx.Request()
	r.Body = http.MaxBytesReader(ctx.ResponseWriter(), r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return handler.Error(errors.Join(err, handler.ErrRequestTooLarge))
		}
		return handler.Error(errors.Join(err, handler.ErrBadRequest.WithMessage("Invalid multipart form")))
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	_, fh, err := r.FormFile("logo")
	if err != nil {
		return handler.Error(errors.Join(err, ErrLogoRequired))
	}
	url, err := s.profiles.UploadLogo(ctx, userID, fh)
	if err != nil {
		return fail(err)
	}
	return handler.JSON(map[string]string{"logo_url": url})
}

type ParseRequest struct {
	Prompt string `json:"prompt"`
}

func (s *Service) parseInvoice(ctx handler.Context, req ParseRequest) handler.Response {
	if strings.TrimSpace(req.Prompt) == "" {
		s.observeAI("invalid")
		return handler.Error(ErrPromptRequired)
	}

	parsed, err := s.parser.ParseInvoice(ctx, req.Prompt, s.now())
	if err != nil {
		mapped := httpError(err)
		var httpErr handler.HTTPError
		switch {
		case errors.As(mapped, &httpErr) && httpErr.Code == http.StatusTooManyRequests:
			s.observeAI(httpErr.Key)
		default:
			s.observeAI("error")
			mapped = errors.Join(err, ErrAIFailed)
		}
		s.log.WarnContext(ctx, "invoice prompt parsing failed",
			logger.Component("ai"),
			logger.Error(err),
		)
		return handler.Error(mapped)
	}
	s.observeAI("ok")
	return handler.JSON(parsed)
}
