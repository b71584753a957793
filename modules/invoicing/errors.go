package invoicing

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/invoicer/handler"
	"github.com/dmitrymomot/invoicer/pkg/gemini"
	"github.com/dmitrymomot/invoicer/svc/invoice"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

var (
	ErrPromptRequired = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "prompt_required",
		Message: "Prompt is required",
	}
	ErrAIQuota = handler.HTTPError{
		Code: http.StatusTooManyRequests, Key: "ai_quota_exhausted",
		Message: "Daily AI quota exhausted. Please try again tomorrow or use manual entry below.",
	}
	ErrAIBusy = handler.HTTPError{
		Code: http.StatusTooManyRequests, Key: "ai_busy",
		Message: "AI service is temporarily busy. Please wait 30 seconds and try again.",
	}
	ErrAIFailed = handler.HTTPError{
		Code: http.StatusInternalServerError, Key: "ai_parse_failed",
		Message: "Failed to parse invoice prompt. Please try again.",
	}
	ErrLogoRequired = handler.HTTPError{
		Code: http.StatusBadRequest, Key: "logo_required",
		Message: "Logo file is required",
	}
)

// httpError classifies domain errors. Unknown errors stay 500.
func httpError(err error) error {
	var mapped handler.HTTPError
	switch {
	case errors.Is(err, invoice.ErrDailyLimitReached):
		mapped = handler.HTTPError{Code: http.StatusForbidden, Key: "quota_exceeded"}
	case errors.Is(err, invoice.ErrInvoiceNotFound), errors.Is(err, invoice.ErrCustomerNotFound):
		mapped = handler.ErrNotFound
	case errors.Is(err, invoice.ErrInvalidTransition), errors.Is(err, invoice.ErrStatusConflict):
		mapped = handler.ErrConflict
	case errors.Is(err, invoice.ErrNoUPIID), errors.Is(err, invoice.ErrNothingOutstanding),
		errors.Is(err, invoice.ErrNoPhone):
		mapped = handler.ErrUnprocessableEntity
	case errors.Is(err, profile.ErrInvalidLogo):
		mapped = handler.ErrBadRequest.WithMessage(profile.ErrInvalidLogo.Error())
	case errors.Is(err, profile.ErrStorageDisabled):
		mapped = handler.ErrServiceUnavailable
	case errors.Is(err, gemini.ErrEmptyPrompt):
		return errors.Join(err, ErrPromptRequired)
	case errors.Is(err, gemini.ErrQuotaExhausted):
		return errors.Join(err, ErrAIQuota)
	case errors.Is(err, gemini.ErrRateLimited):
		return errors.Join(err, ErrAIBusy)
	default:
		return err
	}
	if mapped.Message == "" {
		mapped.Message = capitalize(err.Error())
	}
	return errors.Join(err, mapped)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
