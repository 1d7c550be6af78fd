package transport

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned for any non-2xx response. Data carries the
// decoded response body when the server sent one.
type APIError struct {
	Status     int
	StatusText string
	Data       any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error: %d %s", e.Status, e.StatusText)
}

// IsNotFound reports whether the error is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// AsAPIError extracts an APIError from an error chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
