// Package api assembles the HTTP surface of the service from the module
// route registrars.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Registrar mounts a module's routes on r.
type Registrar interface {
	Routes(r chi.Router)
}

// WebhookRegistrar mounts provider callbacks that authenticate themselves
// with signatures instead of bearer tokens.
type WebhookRegistrar interface {
	WebhookRoutes(r chi.Router)
}

// RouterOptions configures which modules to mount under /api.
// Each module is optional and will only be mounted if provided.
type RouterOptions struct {
	// Authenticate guards every non-webhook route. Required when any
	// module is mounted.
	Authenticate func(http.Handler) http.Handler

	// Private middlewares run after authentication, e.g. provisioning.
	Private []func(http.Handler) http.Handler

	Billing   Registrar
	Webhooks  WebhookRegistrar
	Invoicing Registrar
}

// Router creates the /api router.
//
// Example:
//
//	r.Mount("/api", api.Router(api.RouterOptions{
//	    Authenticate: jwt.Middleware(signer),
//	    Private:      []func(http.Handler) http.Handler{api.Provision(subs, log)},
//	    Billing:      billingSvc,
//	    Webhooks:     billingSvc,
//	    Invoicing:    invoicingSvc,
//	}))
func Router(opts RouterOptions) chi.Router {
	r := chi.NewRouter()

	if opts.Webhooks != nil {
		r.Group(opts.Webhooks.WebhookRoutes)
	}

	r.Group(func(r chi.Router) {
		if opts.Authenticate == nil {
			panic("api: Authenticate middleware is required")
		}
		r.Use(opts.Authenticate)
		r.Use(opts.Private...)

		if opts.Billing != nil {
			r.Group(opts.Billing.Routes)
		}
		if opts.Invoicing != nil {
			r.Group(opts.Invoicing.Routes)
		}
	})

	return r
}
