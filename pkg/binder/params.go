package binder

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/invoicer/handler"
)

// Path binds chi URL parameters to fields tagged `path:"name"`.
func Path() handler.Bind {
	return func(r *http.Request, v any) error {
		rctx := chi.RouteContext(r.Context())
		if rctx == nil {
			return handler.ErrSkipBinder
		}
		values := make(map[string][]string, len(rctx.URLParams.Keys))
		for i, key := range rctx.URLParams.Keys {
			values[key] = []string{rctx.URLParams.Values[i]}
		}
		return bindToStruct(v, "path", values, ErrFailedToParsePath)
	}
}

// Query binds URL query values to fields tagged `query:"name"`.
func Query() handler.Bind {
	return func(r *http.Request, v any) error {
		return bindToStruct(v, "query", r.URL.Query(), ErrFailedToParseQuery)
	}
}
