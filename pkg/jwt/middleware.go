package jwt

import (
	"net/http"
	"strings"
)

// ErrorFunc renders an authentication failure.
type ErrorFunc func(w http.ResponseWriter, r *http.Request, err error)

type middlewareOptions struct {
	onError ErrorFunc
}

type MiddlewareOption func(*middlewareOptions)

// WithErrorFunc replaces the default plain-text 401 response.
func WithErrorFunc(fn ErrorFunc) MiddlewareOption {
	return func(o *middlewareOptions) {
		if fn != nil {
			o.onError = fn
		}
	}
}

// Middleware rejects requests without a valid bearer token.
func Middleware(s *Service, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	o := &middlewareOptions{
		onError: func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		},
	}
	for _, opt := range opts {
		opt(o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := BearerToken(r)
			if err != nil {
				o.onError(w, r, err)
				return
			}
			claims, err := s.Parse(token)
			if err != nil {
				o.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// BearerToken extracts the token from "Authorization: Bearer <token>".
func BearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}
