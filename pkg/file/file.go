package file

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"slices"
	"strings"
)

// ImageMIMETypes lists the image formats accepted for logos.
var ImageMIMETypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp"}

// GetMIMEType sniffs the content type from the first 512 bytes of the upload.
func GetMIMEType(fh *multipart.FileHeader) (string, error) {
	if fh == nil {
		return "", ErrNilFileHeader
	}
	f, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFailedToOpenFile, err)
	}
	defer f.Close()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("%w: %v", ErrFailedToDetectMIMEType, err)
	}
	ct := http.DetectContentType(buf[:n])
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return ct, nil
}

// IsImage reports whether the upload sniffs as an image.
func IsImage(fh *multipart.FileHeader) bool {
	ct, err := GetMIMEType(fh)
	return err == nil && strings.HasPrefix(ct, "image/")
}

// GetExtension returns the lowercased extension of the uploaded file name.
func GetExtension(fh *multipart.FileHeader) string {
	if fh == nil {
		return ""
	}
	return strings.ToLower(filepath.Ext(fh.Filename))
}

// ValidateSize rejects uploads larger than maxBytes.
func ValidateSize(fh *multipart.FileHeader, maxBytes int64) error {
	if fh == nil {
		return ErrNilFileHeader
	}
	if fh.Size > maxBytes {
		return fmt.Errorf("%w: %d > %d bytes", ErrFileTooLarge, fh.Size, maxBytes)
	}
	return nil
}

// ValidateMIMEType rejects uploads whose sniffed type is not in allowed.
func ValidateMIMEType(fh *multipart.FileHeader, allowed ...string) error {
	ct, err := GetMIMEType(fh)
	if err != nil {
		return err
	}
	if !slices.Contains(allowed, ct) {
		return fmt.Errorf("%w: %s", ErrMIMETypeNotAllowed, ct)
	}
	return nil
}

// SanitizeFilename strips directories and anything outside [A-Za-z0-9._-].
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		return "file"
	}
	return out
}

// cleanKey normalizes a storage path and rejects traversal.
func cleanKey(path string) (string, error) {
	raw := filepath.ToSlash(strings.TrimSpace(path))
	if slices.Contains(strings.Split(raw, "/"), "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	p := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+raw)), "/")
	if p == "" || p == "." {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	return p, nil
}
