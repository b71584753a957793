package handler

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string              `json:"error"`
	Code    string              `json:"code,omitempty"`
	Details map[string][]string `json:"details,omitempty"`
}

type jsonResponse struct {
	status int
	body   any
}

func (j jsonResponse) Render(w http.ResponseWriter, r *http.Request) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(j.status)
	return json.NewEncoder(w).Encode(j.body)
}

// JSONOption configures a JSON response.
type JSONOption func(*jsonResponse)

func WithJSONStatus(status int) JSONOption {
	return func(r *jsonResponse) {
		r.status = status
	}
}

// JSON encodes v as the response body with status 200.
func JSON(v any, opts ...JSONOption) Response {
	r := &jsonResponse{status: http.StatusOK, body: v}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// JSONError renders err as ErrorBody. HTTPError and ValidationError keep their
// status and message; any other error becomes a 500 without leaking its text.
func JSONError(err error, opts ...JSONOption) Response {
	status, body := ErrorToBody(err)
	r := &jsonResponse{status: status, body: body}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ErrorToBody classifies err into a status code and a response body.
func ErrorToBody(err error) (int, ErrorBody) {
	var valErr ValidationError
	if errors.As(err, &valErr) {
		body := ErrorBody{Error: "Validation failed", Code: "validation_error"}
		if len(valErr) > 0 {
			body.Details = map[string][]string(valErr)
		}
		return http.StatusUnprocessableEntity, body
	}

	var httpErr HTTPError
	if errors.As(err, &httpErr) {
		msg := httpErr.Message
		if msg == "" {
			msg = http.StatusText(httpErr.Code)
		}
		return httpErr.Code, ErrorBody{Error: msg, Code: httpErr.Key}
	}

	return http.StatusInternalServerError, ErrorBody{
		Error: http.StatusText(http.StatusInternalServerError),
		Code:  ErrInternalServerError.Key,
	}
}
