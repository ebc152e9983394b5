package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Error is an API-level error returned by the backend.
type Error struct {
	HTTPStatus int
	Message    string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.HTTPStatus)
}

// Retryable reports whether the request may succeed if repeated.
func (e *Error) Retryable() bool {
	return e.HTTPStatus == http.StatusTooManyRequests || e.HTTPStatus >= 500
}

// AsError extracts an *Error from an error chain.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// parseError builds an *Error from a non-200 response body. The backend
// reports failures as {"error": "..."}; anything else is passed through
// verbatim.
func parseError(httpStatus int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return &Error{HTTPStatus: httpStatus, Message: payload.Error}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(httpStatus)
	}
	return &Error{HTTPStatus: httpStatus, Message: msg}
}
