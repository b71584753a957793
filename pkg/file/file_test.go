package file_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/invoicer/pkg/file"
)

// 1x1 transparent PNG.
var pngBytes = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0a, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := new(bytes.Buffer)
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := &http.Request{
		Method: http.MethodPost,
		Header: http.Header{"Content-Type": []string{w.FormDataContentType()}},
		Body:   io.NopCloser(body),
	}
	require.NoError(t, req.ParseMultipartForm(32<<20))
	return req.MultipartForm.File["file"][0]
}

func TestValidation(t *testing.T) {
	t.Parallel()

	png := fileHeader(t, "Logo.PNG", pngBytes)
	txt := fileHeader(t, "notes.txt", []byte("hello world"))

	t.Run("image detection", func(t *testing.T) {
		t.Parallel()
		assert.True(t, file.IsImage(png))
		assert.False(t, file.IsImage(txt))
		assert.False(t, file.IsImage(nil))
	})

	t.Run("mime type", func(t *testing.T) {
		t.Parallel()
		ct, err := file.GetMIMEType(png)
		require.NoError(t, err)
		assert.Equal(t, "image/png", ct)

		require.NoError(t, file.ValidateMIMEType(png, file.ImageMIMETypes...))
		assert.ErrorIs(t, file.ValidateMIMEType(txt, file.ImageMIMETypes...), file.ErrMIMETypeNotAllowed)
	})

	t.Run("size", func(t *testing.T) {
		t.Parallel()
		require.NoError(t, file.ValidateSize(png, 1024))
		assert.ErrorIs(t, file.ValidateSize(png, 10), file.ErrFileTooLarge)
		assert.ErrorIs(t, file.ValidateSize(nil, 10), file.ErrNilFileHeader)
	})

	t.Run("extension", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, ".png", file.GetExtension(png))
	})
}

func TestSanitizeFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"logo.png", "logo.png"},
		{"../../etc/passwd", "passwd"},
		{"C:\\Users\\me\\my logo.png", "my_logo.png"},
		{"ünïcode$.jpg", "ncode.jpg"},
		{"...", "file"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, file.SanitizeFilename(tt.in), tt.in)
	}
}

func TestLocalStorage(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := file.NewLocalStorage(dir, "http://localhost:8080/files/")
	require.NoError(t, err)

	fh := fileHeader(t, "logo.png", pngBytes)
	f, err := s.Save(context.Background(), fh, "logos/u1.png")
	require.NoError(t, err)
	assert.Equal(t, "logos/u1.png", f.Path)
	assert.Equal(t, "http://localhost:8080/files/logos/u1.png", f.URL)
	assert.Equal(t, "image/png", f.MIMEType)
	assert.Equal(t, int64(len(pngBytes)), f.Size)

	stored, err := os.ReadFile(filepath.Join(dir, "logos", "u1.png"))
	require.NoError(t, err)
	assert.Equal(t, pngBytes, stored)

	_, err = s.Save(context.Background(), fh, "../escape.png")
	assert.ErrorIs(t, err, file.ErrInvalidPath)

	require.NoError(t, s.Delete(context.Background(), "logos/u1.png"))
	assert.ErrorIs(t, s.Delete(context.Background(), "logos/u1.png"), file.ErrFileNotFound)
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, in)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func TestS3Storage(t *testing.T) {
	t.Parallel()

	t.Run("requires bucket and region", func(t *testing.T) {
		t.Parallel()
		_, err := file.NewS3Storage(context.Background(), file.S3Config{Bucket: "b"})
		assert.ErrorIs(t, err, file.ErrInvalidConfig)
	})

	t.Run("save puts object with sniffed content type", func(t *testing.T) {
		t.Parallel()
		client := &mockS3{}
		client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
			return *in.Bucket == "logos" && *in.Key == "u1/logo.png" && *in.ContentType == "image/png"
		})).Return(&s3.PutObjectOutput{}, nil).Once()

		s, err := file.NewS3Storage(context.Background(), file.S3Config{
			Bucket: "logos", Region: "ap-south-1",
		}, file.WithS3Client(client))
		require.NoError(t, err)

		f, err := s.Save(context.Background(), fileHeader(t, "logo.png", pngBytes), "/u1/logo.png")
		require.NoError(t, err)
		assert.Equal(t, "https://logos.s3.ap-south-1.amazonaws.com/u1/logo.png", f.URL)
		client.AssertExpectations(t)
	})

	t.Run("custom endpoint url", func(t *testing.T) {
		t.Parallel()
		s, err := file.NewS3Storage(context.Background(), file.S3Config{
			Bucket: "logos", Region: "us-east-1", Endpoint: "http://minio:9000/",
		}, file.WithS3Client(&mockS3{}))
		require.NoError(t, err)
		assert.Equal(t, "http://minio:9000/logos/a.png", s.URL("a.png"))
	})

	t.Run("errors are classified", func(t *testing.T) {
		t.Parallel()
		client := &mockS3{}
		client.On("DeleteObject", mock.Anything, mock.Anything).
			Return(nil, &types.NoSuchKey{}).Once()
		client.On("DeleteObject", mock.Anything, mock.Anything).
			Return(nil, &smithy.GenericAPIError{Code: "AccessDenied"}).Once()
		client.On("DeleteObject", mock.Anything, mock.Anything).
			Return(nil, errors.New("boom")).Once()

		s, err := file.NewS3Storage(context.Background(), file.S3Config{
			Bucket: "logos", Region: "ap-south-1",
		}, file.WithS3Client(client))
		require.NoError(t, err)

		assert.ErrorIs(t, s.Delete(context.Background(), "a.png"), file.ErrFileNotFound)
		assert.ErrorIs(t, s.Delete(context.Background(), "a.png"), file.ErrAccessDenied)
		err = s.Delete(context.Background(), "a.png")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delete failed")
	})
}

func TestNew(t *testing.T) {
	t.Parallel()

	s, err := file.New(context.Background(), file.Config{Driver: "local", LocalDir: t.TempDir(), BaseURL: "/files"})
	require.NoError(t, err)
	assert.IsType(t, &file.LocalStorage{}, s)

	_, err = file.New(context.Background(), file.Config{Driver: "ftp"})
	assert.ErrorIs(t, err, file.ErrInvalidConfig)
}
