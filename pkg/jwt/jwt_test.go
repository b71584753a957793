package jwt_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicer/pkg/jwt"
)

func newService(t *testing.T, cfg jwt.Config) *jwt.Service {
	t.Helper()
	if cfg.Secret == "" {
		cfg.Secret = "test-secret-with-enough-entropy"
	}
	s, err := jwt.New(cfg)
	require.NoError(t, err)
	return s
}

func sign(t *testing.T, secret string, method gojwt.SigningMethod, claims gojwt.Claims) string {
	t.Helper()
	tok, err := gojwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func TestParse(t *testing.T) {
	t.Parallel()

	userID := uuid.New()

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		s := newService(t, jwt.Config{Issuer: "auth", Audience: "authenticated"})
		tok, err := s.Issue(userID, "a@b.in", time.Hour)
		require.NoError(t, err)

		claims, err := s.Parse(tok)
		require.NoError(t, err)
		id, err := claims.UserID()
		require.NoError(t, err)
		assert.Equal(t, userID, id)
		assert.Equal(t, "a@b.in", claims.Email)
	})

	t.Run("rejections", func(t *testing.T) {
		t.Parallel()
		s := newService(t, jwt.Config{})
		future := gojwt.NewNumericDate(time.Now().Add(time.Hour))

		tests := []struct {
			name  string
			token string
			want  error
		}{
			{
				name: "expired",
				token: sign(t, "test-secret-with-enough-entropy", gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
					Subject: userID.String(), ExpiresAt: gojwt.NewNumericDate(time.Now().Add(-time.Hour)),
				}),
				want: jwt.ErrExpiredToken,
			},
			{
				name: "wrong secret",
				token: sign(t, "other", gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
					Subject: userID.String(), ExpiresAt: future,
				}),
				want: jwt.ErrInvalidToken,
			},
			{
				name: "wrong algorithm",
				token: sign(t, "test-secret-with-enough-entropy", gojwt.SigningMethodHS512, gojwt.RegisteredClaims{
					Subject: userID.String(), ExpiresAt: future,
				}),
				want: jwt.ErrInvalidToken,
			},
			{
				name: "no expiry",
				token: sign(t, "test-secret-with-enough-entropy", gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
					Subject: userID.String(),
				}),
				want: jwt.ErrInvalidToken,
			},
			{
				name: "subject not a uuid",
				token: sign(t, "test-secret-with-enough-entropy", gojwt.SigningMethodHS256, gojwt.RegisteredClaims{
					Subject: "admin", ExpiresAt: future,
				}),
				want: jwt.ErrInvalidSubject,
			},
			{name: "garbage", token: "not.a.jwt", want: jwt.ErrInvalidToken},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				_, err := s.Parse(tt.token)
				assert.ErrorIs(t, err, tt.want)
			})
		}
	})

	t.Run("audience enforced", func(t *testing.T) {
		t.Parallel()
		issuer := newService(t, jwt.Config{})
		tok, err := issuer.Issue(userID, "", time.Hour)
		require.NoError(t, err)

		_, err = newService(t, jwt.Config{Audience: "authenticated"}).Parse(tok)
		assert.ErrorIs(t, err, jwt.ErrInvalidToken)
	})

	t.Run("secret required", func(t *testing.T) {
		t.Parallel()
		_, err := jwt.New(jwt.Config{})
		assert.ErrorIs(t, err, jwt.ErrMissingSigningKey)
	})
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	s := newService(t, jwt.Config{})
	userID := uuid.New()
	tok, err := s.Issue(userID, "", time.Hour)
	require.NoError(t, err)

	var seen uuid.UUID
	h := jwt.Middleware(s)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = jwt.UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer " + tok, http.StatusNoContent},
		{"lowercase scheme", "bearer " + tok, http.StatusNoContent},
		{"missing", "", http.StatusUnauthorized},
		{"basic auth", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer abc", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
	assert.Equal(t, userID, seen)

	t.Run("custom error renderer", func(t *testing.T) {
		var got error
		h := jwt.Middleware(s, jwt.WithErrorFunc(func(w http.ResponseWriter, _ *http.Request, err error) {
			got = err
			w.WriteHeader(http.StatusTeapot)
		}))(http.NotFoundHandler())

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
		assert.ErrorIs(t, got, jwt.ErrMissingToken)
	})
}
