package backend

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the backend. Message carries the
// server's "error" field verbatim.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned HTTP %d: %s", e.StatusCode, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status, Body: string(body)}
	var parsed errorResponse
	if err := decodeJSON(body, &parsed); err == nil && parsed.Error != "" {
		e.Message = parsed.Error
	} else {
		e.Message = http.StatusText(status)
	}
	return e
}

// NetworkError is a request that never produced a usable response: dial
// failures, timeouts, cancelled contexts and undecodable bodies.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ErrorMessage is the text shown to the user for a failed call: the server's
// error string for an APIError, the underlying cause for a NetworkError.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) && netErr.Err != nil {
		return netErr.Err.Error()
	}
	return err.Error()
}

// IsNetworkError reports whether err never reached a backend response.
func IsNetworkError(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}
