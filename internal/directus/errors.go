package directus

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorDetail is a single entry of a Directus error response.
type ErrorDetail struct {
	Message    string `json:"message"`
	Extensions struct {
		Code  string `json:"code"`
		Field string `json:"field,omitempty"`
	} `json:"extensions"`
}

// errorResponse is the standard Directus error body.
type errorResponse struct {
	Errors []ErrorDetail `json:"errors"`
}

// APIError is returned for any non-2xx response from the backend.
type APIError struct {
	Status int
	Method string
	Path   string
	Errors []ErrorDetail
	// Body holds the raw response when it was not a Directus error document.
	Body string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("directus: %d on %s %s: %s", e.Status, e.Method, e.Path, e.Message())
}

// Message returns the backend-provided message, or the HTTP status text.
func (e *APIError) Message() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, d := range e.Errors {
		if d.Message != "" {
			msgs = append(msgs, d.Message)
		}
	}
	if len(msgs) > 0 {
		return strings.Join(msgs, "; ")
	}
	if e.Body != "" {
		return e.Body
	}
	return http.StatusText(e.Status)
}

// FieldErrors maps field names to validation messages reported by the
// backend. Nested fields use dotted paths.
func (e *APIError) FieldErrors() map[string]string {
	out := make(map[string]string)
	for _, d := range e.Errors {
		if d.Extensions.Field != "" {
			out[d.Extensions.Field] = d.Message
		}
	}
	return out
}

// StatusOf returns the HTTP status carried by err, or 0 when err is not an
// APIError (for instance a transport failure).
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool { return StatusOf(err) == http.StatusNotFound }

// IsForbidden reports whether err is a 403 from the backend.
func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

// IsUnauthorized reports whether err is a 401 from the backend, meaning the
// token is missing or expired.
func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

// IsMisconfigured reports whether err indicates an expected backend feature
// is absent: a missing collection (404) or a missing permission (403).
func IsMisconfigured(err error) bool { return IsNotFound(err) || IsForbidden(err) }

// Describe returns a short message suitable for an error toast.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return "The server could not be reached"
}
