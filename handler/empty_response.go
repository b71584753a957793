package handler

import "net/http"

type emptyResponse struct {
	status int
}

func (e emptyResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.WriteHeader(e.status)
	return nil
}

// NoContent responds 204 without a body.
func NoContent() Response {
	return emptyResponse{status: http.StatusNoContent}
}

type blobResponse struct {
	contentType string
	data        []byte
}

func (b blobResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", b.contentType)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, err := w.Write(b.data)
	return err
}

// Blob writes raw bytes with the given content type, e.g. a PNG QR code.
func Blob(contentType string, data []byte) Response {
	return blobResponse{contentType: contentType, data: data}
}

type errorResponse struct {
	err error
}

func (e errorResponse) Render(http.ResponseWriter, *http.Request) error {
	return e.err
}

// Error hands err to the ErrorHandler configured on Wrap, which logs,
// reports and renders it. Use JSONError to render without logging.
func Error(err error) Response {
	return errorResponse{err: err}
}
