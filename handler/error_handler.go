package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/invoicer/pkg/logger"
	"github.com/dmitrymomot/invoicer/pkg/requestid"
)

// Reporter forwards server errors to an external tracker.
type Reporter func(ctx context.Context, err error)

// ErrorHandlerOption configures NewErrorHandler.
type ErrorHandlerOption func(*errorHandlerConfig)

type errorHandlerConfig struct {
	reporter Reporter
}

// WithReporter sends every 5xx error to r.
func WithReporter(r Reporter) ErrorHandlerOption {
	return func(c *errorHandlerConfig) {
		c.reporter = r
	}
}

// NewErrorHandler logs the error and renders it as JSON.
// Client errors are logged at warn level, server errors at error level.
func NewErrorHandler(log *slog.Logger, opts ...ErrorHandlerOption) ErrorHandler[Context] {
	if log == nil {
		log = slog.Default()
	}
	cfg := &errorHandlerConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		status, body := ErrorToBody(err)

		level := slog.LevelError
		if status < http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		log.LogAttrs(r.Context(), level, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", status),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("error_handler"),
		)

		if status >= http.StatusInternalServerError && cfg.reporter != nil {
			cfg.reporter(r.Context(), err)
		}

		resp := jsonResponse{status: status, body: body}
		if renderErr := resp.Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.ErrorContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}
