package profile_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"sync"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicer/pkg/file"
	"github.com/dmitrymomot/invoicer/svc/profile"
)

type memStore struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]profile.BusinessProfile
	logoErr error
}

func newMemStore() *memStore {
	return &memStore{rows: map[uuid.UUID]profile.BusinessProfile{}}
}

func (m *memStore) Get(_ context.Context, userID uuid.UUID) (*profile.BusinessProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.rows[userID]
	if !ok {
		return nil, profile.ErrProfileNotFound
	}
	return &p, nil
}

func (m *memStore) Upsert(_ context.Context, p *profile.BusinessProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.UserID] = *p
	return nil
}

func (m *memStore) SetLogoURL(_ context.Context, userID uuid.UUID, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.logoErr != nil {
		return m.logoErr
	}
	p := m.rows[userID]
	p.UserID = userID
	p.LogoURL = url
	m.rows[userID] = p
	return nil
}

var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89,
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("logo", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := &http.Request{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": []string{w.FormDataContentType()}},
		Body:   io.NopCloser(body),
	}
	require.NoError(t, req.ParseMultipartForm(1<<20))
	return req.MultipartForm.File["logo"][0]
}

func TestGet(t *testing.T) {
	t.Parallel()

	svc := profile.NewService(newMemStore())
	p, err := svc.Get(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, profile.TemplateClassic, p.InvoiceTemplate)
	assert.Empty(t, p.BusinessName)
	assert.Equal(t, "Pro Invoice", p.DisplayName("Pro Invoice"))
}

func TestUpsert(t *testing.T) {
	t.Parallel()

	t.Run("saves trimmed values and keeps logo", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		userID := uuid.New()
		require.NoError(t, store.SetLogoURL(context.Background(), userID, "/files/logo.png"))

		svc := profile.NewService(store)
		p, err := svc.Upsert(context.Background(), userID, profile.Input{
			BusinessName: "  Acme Traders ",
			Email:        "Billing@Acme.in",
			UPIID:        "acme.traders@okhdfc",
		})
		require.NoError(t, err)
		assert.Equal(t, "Acme Traders", p.BusinessName)
		assert.Equal(t, "billing@acme.in", p.Email)
		assert.Equal(t, profile.TemplateClassic, p.InvoiceTemplate)
		assert.Equal(t, "/files/logo.png", p.LogoURL)

		got, err := svc.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "Acme Traders", got.BusinessName)
	})

	t.Run("validation", func(t *testing.T) {
		t.Parallel()
		svc := profile.NewService(newMemStore())

		tests := []struct {
			name  string
			in    profile.Input
			field string
		}{
			{"missing name", profile.Input{}, "BusinessName"},
			{"bad email", profile.Input{BusinessName: "A", Email: "nope"}, "Email"},
			{"bad template", profile.Input{BusinessName: "A", InvoiceTemplate: "fancy"}, "InvoiceTemplate"},
			{"bad upi", profile.Input{BusinessName: "A", UPIID: "no-at-sign"}, "UPIID"},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				t.Parallel()
				_, err := svc.Upsert(context.Background(), uuid.New(), tt.in)
				var verrs validator.ValidationErrors
				require.ErrorAs(t, err, &verrs)
				assert.Equal(t, tt.field, verrs[0].Field())
			})
		}
	})
}

func TestUploadLogo(t *testing.T) {
	t.Parallel()

	t.Run("stores image and saves url", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		storage, err := file.NewLocalStorage(t.TempDir(), "/files")
		require.NoError(t, err)

		svc := profile.NewService(store, profile.WithStorage(storage))
		userID := uuid.New()
		url, err := svc.UploadLogo(context.Background(), userID, fileHeader(t, "logo.png", pngBytes))
		require.NoError(t, err)
		assert.Contains(t, url, "/files/logos/"+userID.String()+"/")

		p, err := svc.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, url, p.LogoURL)
	})

	t.Run("rejects non images", func(t *testing.T) {
		t.Parallel()
		storage, err := file.NewLocalStorage(t.TempDir(), "/files")
		require.NoError(t, err)
		svc := profile.NewService(newMemStore(), profile.WithStorage(storage))

		_, err = svc.UploadLogo(context.Background(), uuid.New(), fileHeader(t, "logo.png", []byte("plain text")))
		assert.ErrorIs(t, err, profile.ErrInvalidLogo)
	})

	t.Run("rejects large files", func(t *testing.T) {
		t.Parallel()
		storage, err := file.NewLocalStorage(t.TempDir(), "/files")
		require.NoError(t, err)
		svc := profile.NewService(newMemStore(), profile.WithStorage(storage), profile.WithMaxLogoSize(8))

		_, err = svc.UploadLogo(context.Background(), uuid.New(), fileHeader(t, "logo.png", pngBytes))
		assert.ErrorIs(t, err, profile.ErrInvalidLogo)
		assert.ErrorIs(t, err, file.ErrFileTooLarge)
	})

	t.Run("storage disabled", func(t *testing.T) {
		t.Parallel()
		svc := profile.NewService(newMemStore())
		_, err := svc.UploadLogo(context.Background(), uuid.New(), fileHeader(t, "logo.png", pngBytes))
		assert.ErrorIs(t, err, profile.ErrStorageDisabled)
	})

	t.Run("store failure surfaces", func(t *testing.T) {
		t.Parallel()
		store := newMemStore()
		store.logoErr = errors.New("db down")
		storage, err := file.NewLocalStorage(t.TempDir(), "/files")
		require.NoError(t, err)
		svc := profile.NewService(store, profile.WithStorage(storage))

		_, err = svc.UploadLogo(context.Background(), uuid.New(), fileHeader(t, "logo.png", pngBytes))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "save logo url")
	})
}
