package binder

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/invoicer/handler"
)

var (
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrMissingContentType   = errors.New("missing content type")
	ErrBodyTooLarge         = errors.New("request body too large")
	ErrFailedToParseJSON    = errors.New("failed to parse JSON request body")
	ErrFailedToParseQuery   = errors.New("failed to parse query parameters")
	ErrFailedToParsePath    = errors.New("failed to parse path parameters")
)

// fail joins the sentinel, an HTTP classification and the detail.
func fail(sentinel error, status handler.HTTPError, format string, args ...any) error {
	detail := fmt.Sprintf(format, args...)
	return errors.Join(sentinel, status.WithMessage(detail))
}
