// Package handler turns typed functions into http.HandlerFunc values.
//
// A HandlerFunc receives a Context and a request value already populated by
// binders, and returns a Response. Errors returned from binders or produced by
// rendering go to an ErrorHandler, which renders a JSON error body:
//
//	{"error": "Prompt is required", "code": "bad_request"}
//
// Example:
//
//	parse := handler.HandlerFunc[handler.Context, ParseRequest](
//		func(ctx handler.Context, req ParseRequest) handler.Response {
//			parsed, err := ai.ParseInvoice(ctx, req.Prompt, time.Now())
//			if err != nil {
//				return handler.JSONError(err)
//			}
//			return handler.JSON(parsed)
//		},
//	)
//
//	r.Post("/api/ai/parse-invoice", handler.Wrap(parse,
//		handler.WithBinder[handler.Context, ParseRequest](binder.JSON()),
//		handler.WithErrorHandler[handler.Context, ParseRequest](errHandler),
//	))
package handler
