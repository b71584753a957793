package binder

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/dmitrymomot/invoicer/handler"
)

// DefaultMaxJSONSize caps JSON request bodies at 1MB.
const DefaultMaxJSONSize = 1 << 20

// JSON decodes an application/json body into the target struct.
func JSON() handler.Bind {
	return func(r *http.Request, v any) error {
		ct := r.Header.Get("Content-Type")
		if ct == "" {
			return fail(ErrMissingContentType, handler.ErrUnsupportedMedia, "Content-Type must be application/json")
		}
		mediaType, _, err := mime.ParseMediaType(ct)
		if err != nil || mediaType != "application/json" {
			return fail(ErrUnsupportedMediaType, handler.ErrUnsupportedMedia, "Content-Type must be application/json")
		}

		body, err := ReadBody(r, DefaultMaxJSONSize)
		if err != nil {
			return err
		}

		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		if err := dec.Decode(v); err != nil {
			if errors.Is(err, io.EOF) {
				return fail(ErrFailedToParseJSON, handler.ErrBadRequest, "Request body is empty")
			}
			return fail(ErrFailedToParseJSON, handler.ErrBadRequest, "Invalid JSON: %v", err)
		}
		if dec.More() {
			return fail(ErrFailedToParseJSON, handler.ErrBadRequest, "Unexpected data after JSON object")
		}
		return nil
	}
}

// ReadBody reads at most limit bytes. Webhook handlers use it to keep the exact
// bytes that were signed.
func ReadBody(r *http.Request, limit int64) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, fail(ErrFailedToParseJSON, handler.ErrBadRequest, "Failed to read request body")
	}
	if int64(len(body)) > limit {
		return nil, fail(ErrBodyTooLarge, handler.ErrRequestTooLarge, "Request body exceeds %d bytes", limit)
	}
	return body, nil
}
