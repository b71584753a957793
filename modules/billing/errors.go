package billing

import (
	"net/http"

	"github.com/dmitrymomot/invoicer/handler"
)

var (
	ErrAlreadyPro = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "already_subscribed",
		Message: "You already have an active Pro subscription",
	}
	ErrCreateSubscription = handler.HTTPError{
		Code: http.StatusInternalServerError, Key: "subscription_create_failed",
		Message: "Failed to create subscription",
	}
	ErrInvalidPaymentSignature = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "invalid_payment_signature",
		Message: "Invalid payment signature",
	}
	ErrVerifyPayment = handler.HTTPError{
		Code: http.StatusInternalServerError, Key: "payment_verification_failed",
		Message: "Failed to verify payment",
	}
	ErrNoSignature = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "missing_signature",
		Message: "No signature",
	}
	ErrInvalidSignature = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "invalid_signature",
		Message: "Invalid signature",
	}
	ErrInvalidPayload = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "invalid_payload",
		Message: "Invalid webhook payload",
	}
	ErrWebhookFailed = handler.HTTPError{
		Code: http.StatusInternalServerError, Key: "webhook_failed",
		Message: "Webhook handler failed",
	}
	ErrStatus = handler.HTTPError{
		Code: http.StatusInternalServerError, Key: "subscription_status_failed",
		Message: "Failed to get subscription status",
	}
	ErrNoActiveSubscription = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "no_active_subscription",
		Message: "No active subscription to cancel",
	}
	ErrCancelSubscription = handler.HTTPError{
		Code: http.StatusInternalServerError, Key: "subscription_cancel_failed",
		Message: "Failed to cancel subscription",
	}
	ErrCheckout = handler.HTTPError{
		Code: http.StatusInternalServerError, Key: "checkout_failed",
		Message: "Failed to create checkout",
	}
)
