package billing

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmitrymomot/invoicer/handler"
	"github.com/dmitrymomot/invoicer/pkg/binder"
	"github.com/dmitrymomot/invoicer/pkg/jwt"
	"github.com/dmitrymomot/invoicer/pkg/logger"
	"github.com/dmitrymomot/invoicer/pkg/subscription"
)

// Routes registers the authenticated billing endpoints.
func (s *Service) Routes(r chi.Router) {
	r.Post("/razorpay/create-subscription", handler.Wrap(s.createSubscription,
		handler.WithBinder[handler.Context, CreateSubscriptionRequest](optionalJSON()),
		handler.WithErrorHandler[handler.Context, CreateSubscriptionRequest](s.errorHandler),
	))
	r.Post("/razorpay/verify", handler.Wrap(s.verifyPayment,
		handler.WithBinder[handler.Context, VerifyPaymentRequest](binder.JSON()),
		handler.WithErrorHandler[handler.Context, VerifyPaymentRequest](s.errorHandler),
	))
	r.Post("/razorpay/cancel", handler.Wrap(s.cancelSubscription,
		handler.WithBinder[handler.Context, CancelRequest](optionalJSON()),
		handler.WithErrorHandler[handler.Context, CancelRequest](s.errorHandler),
	))
	r.Get("/subscription/status", handler.Wrap(s.status,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))
	if s.paddle != nil {
		r.Post("/paddle/checkout", handler.Wrap(s.paddleCheckout,
			handler.WithBinder[handler.Context, CreateSubscriptionRequest](optionalJSON()),
			handler.WithErrorHandler[handler.Context, CreateSubscriptionRequest](s.errorHandler),
		))
	}
}

// WebhookRoutes registers the provider callbacks. They authenticate by
// signature and must not sit behind user authentication.
func (s *Service) WebhookRoutes(r chi.Router) {
	r.Post("/razorpay/webhook", handler.Wrap(s.razorpayWebhook,
		handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
	))
	if s.paddle != nil {
		r.Post("/paddle/webhook", handler.Wrap(s.paddleWebhook,
			handler.WithErrorHandler[handler.Context, struct{}](s.errorHandler),
		))
	}
}

// optionalJSON binds a JSON body when one is sent and leaves defaults otherwise.
func optionalJSON() handler.Bind {
	bind := binder.JSON()
	return func(r *http.Request, v any) error {
		if r.ContentLength == 0 {
			return handler.ErrSkipBinder
		}
		return bind(r, v)
	}
}

func currentUser(ctx context.Context) (uuid.UUID, error) {
	id, ok := jwt.UserID(ctx)
	if !ok {
		return uuid.Nil, handler.ErrUnauthorized
	}
	return id, nil
}

// loadSubscription treats a missing row as the implicit free plan.
func (s *Service) loadSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := s.subs.GetByUserID(ctx, userID)
	if errors.Is(err, subscription.ErrSubscriptionNotFound) {
		return subscription.Free(userID), nil
	}
	return sub, err
}

type CreateSubscriptionRequest struct {
	BillingCycle string `json:"billingCycle"`
}

type CreateSubscriptionResponse struct {
	SubscriptionID string `json:"subscriptionId"`
	KeyID          string `json:"keyId"`
}

func (s *Service) createSubscription(ctx handler.Context, req CreateSubscriptionRequest) handler.Response {
	cycle := subscription.ParseBillingCycle(req.BillingCycle)
	planID, err := s.razorpay.PlanID(cycle)
	if err != nil {
		return handler.Error(errors.Join(err, ErrCreateSubscription.WithMessage(err.Error())))
	}

	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	sub, err := s.loadSubscription(ctx, userID)
	if err != nil {
		return handler.Error(errors.Join(err, ErrCreateSubscription))
	}
	if sub.IsPro() {
		return handler.Error(ErrAlreadyPro)
	}

	email := ""
	if claims, ok := jwt.ClaimsFromContext(ctx); ok {
		email = claims.Email
	}
	created, err := s.razorpay.CreateSubscription(ctx, subscription.CreateSubscriptionParams{
		PlanID: planID,
		Notes: map[string]string{
			"userId":       userID.String(),
			"email":        email,
			"billingCycle": string(cycle),
		},
	})
	if err != nil {
		return handler.Error(errors.Join(err, providerFailure(err, ErrCreateSubscription)))
	}

	s.log.InfoContext(ctx, "razorpay subscription created",
		logger.Component("billing"),
		logger.UserID(userID),
		logger.ExternalSubscriptionID(created.ID),
	)
	return handler.JSON(CreateSubscriptionResponse{
		SubscriptionID: created.ID,
		KeyID:          s.razorpay.KeyID(),
	})
}

// providerFailure surfaces the provider's own description when it sent one.
func providerFailure(err error, fallback handler.HTTPError) handler.HTTPError {
	var pe *subscription.ProviderError
	if errors.As(err, &pe) && pe.Description != "" {
		return fallback.WithMessage(pe.Description)
	}
	return fallback
}

type VerifyPaymentRequest struct {
	PaymentID      string `json:"razorpay_payment_id"`
	SubscriptionID string `json:"razorpay_subscription_id"`
	Signature      string `json:"razorpay_signature"`
}

func (s *Service) verifyPayment(ctx handler.Context, req VerifyPaymentRequest) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	if !s.razorpay.VerifyPaymentSignature(req.PaymentID, req.SubscriptionID, req.Signature) {
		return handler.Error(ErrInvalidPaymentSignature)
	}
	if err := s.subs.ConfirmPayment(ctx, userID, req.SubscriptionID); err != nil {
		return handler.Error(errors.Join(err, ErrVerifyPayment))
	}
	return handler.JSON(map[string]bool{"success": true})
}

type CancelRequest struct {
	AtCycleEnd bool `json:"atCycleEnd"`
}

// cancelSubscription asks the provider to cancel. The local row changes when
// the provider's cancellation webhook arrives.
func (s *Service) cancelSubscription(ctx handler.Context, req CancelRequest) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	sub, err := s.loadSubscription(ctx, userID)
	if err != nil {
		return handler.Error(errors.Join(err, ErrCancelSubscription))
	}
	if !sub.IsPro() || sub.ExternalID == "" {
		return handler.Error(ErrNoActiveSubscription)
	}

	cancelled, err := s.razorpay.CancelSubscription(ctx, sub.ExternalID, req.AtCycleEnd)
	if err != nil {
		return handler.Error(errors.Join(err, providerFailure(err, ErrCancelSubscription)))
	}
	return handler.JSON(map[string]any{
		"success":    true,
		"status":     cancelled.Status,
		"atCycleEnd": req.AtCycleEnd,
	})
}

func (s *Service) status(ctx handler.Context, _ struct{}) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	res, err := s.entitlements.CheckInvoiceLimit(ctx, userID)
	if err != nil {
		return handler.Error(errors.Join(err, ErrStatus))
	}
	return handler.JSON(res)
}

type CheckoutResponse struct {
	URL       string    `json:"url"`
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Service) paddleCheckout(ctx handler.Context, req CreateSubscriptionRequest) handler.Response {
	userID, err := currentUser(ctx)
	if err != nil {
		return handler.Error(err)
	}
	sub, err := s.loadSubscription(ctx, userID)
	if err != nil {
		return handler.Error(errors.Join(err, ErrCheckout))
	}
	if sub.IsPro() {
		return handler.Error(ErrAlreadyPro)
	}

	email := ""
	if claims, ok := jwt.ClaimsFromContext(ctx); ok {
		email = claims.Email
	}
	link, err := s.paddle.CreateCheckout(ctx, subscription.CheckoutRequest{
		UserID: userID,
		Email:  email,
		Cycle:  subscription.ParseBillingCycle(req.BillingCycle),
	})
	var planErr *subscription.PlanConfigError
	switch {
	case errors.As(err, &planErr):
		return handler.Error(errors.Join(err, ErrCheckout.WithMessage(planErr.Error())))
	case err != nil:
		return handler.Error(errors.Join(err, ErrCheckout))
	}
	return handler.JSON(CheckoutResponse{URL: link.URL, SessionID: link.SessionID, ExpiresAt: link.ExpiresAt})
}

var received = map[string]bool{"received": true}

func (s *Service) razorpayWebhook(ctx handler.Context, _ struct{}) handler.Response {
	r := ctx.Request()
	body, err := binder.ReadBody(r, MaxWebhookBody)
	if err != nil {
		return handler.Error(err)
	}
	signature := r.Header.Get("x-razorpay-signature")
	if signature == "" {
		return handler.Error(ErrNoSignature)
	}
	if !s.razorpay.VerifyWebhookSignature(body, signature) {
		s.log.WarnContext(ctx, "razorpay webhook signature verification failed", logger.Component("billing"))
		return handler.Error(ErrInvalidSignature)
	}

	ev, err := s.razorpay.ParseWebhook(body)
	if err != nil {
		return handler.Error(errors.Join(err, ErrInvalidPayload))
	}
	ev.ID = r.Header.Get("x-razorpay-event-id")

	if err := s.process(ctx, ev); err != nil {
		return handler.Error(errors.Join(err, ErrWebhookFailed))
	}
	return handler.JSON(received)
}

func (s *Service) paddleWebhook(ctx handler.Context, _ struct{}) handler.Response {
	r := ctx.Request()
	body, err := binder.ReadBody(r, MaxWebhookBody)
	if err != nil {
		return handler.Error(err)
	}
	signature := r.Header.Get("Paddle-Signature")
	if signature == "" {
		return handler.Error(ErrNoSignature)
	}

	ev, err := s.paddle.ParseWebhook(ctx, body, signature)
	switch {
	case errors.Is(err, subscription.ErrWebhookVerification):
		s.log.WarnContext(ctx, "paddle webhook signature verification failed", logger.Component("billing"))
		return handler.Error(errors.Join(err, ErrInvalidSignature))
	case err != nil:
		return handler.Error(errors.Join(err, ErrInvalidPayload))
	}

	if err := s.process(ctx, ev); err != nil {
		return handler.Error(errors.Join(err, ErrWebhookFailed))
	}
	return handler.JSON(received)
}

// process applies ev once per delivery id. A failed event releases its id so
// the provider's redelivery is processed again.
func (s *Service) process(ctx context.Context, ev *subscription.WebhookEvent) error {
	log := s.log.With(
		logger.Component("billing"),
		logger.EventType(string(ev.Type)),
		logger.ExternalSubscriptionID(ev.ExternalID),
	)

	claimed := false
	if s.deduper != nil && ev.ID != "" {
		fresh, err := s.deduper.Claim(ctx, ev.Provider, ev.ID)
		switch {
		case err != nil:
			log.WarnContext(ctx, "webhook dedupe unavailable, processing anyway", logger.Error(err))
		case !fresh:
			log.InfoContext(ctx, "duplicate webhook delivery skipped")
			return nil
		default:
			claimed = true
		}
	}

	if err := s.subs.HandleWebhook(ctx, ev); err != nil {
		if claimed {
			if rerr := s.deduper.Release(ctx, ev.Provider, ev.ID); rerr != nil {
				log.WarnContext(ctx, "failed to release webhook event id", logger.Error(rerr))
			}
		}
		return err
	}
	return nil
}
