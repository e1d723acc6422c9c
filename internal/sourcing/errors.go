package sourcing

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is returned when the content service answers with a failure
type APIError struct {
	Operation    string
	StatusCode   int
	ResponseCode string
	Code         string
	Message      string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s failed with status %d (%s): %s", e.Operation, e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Operation, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a not found answer from the service
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsStaleVersion reports whether err is an optimistic concurrency rejection
func IsStaleVersion(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == ErrCodeStaleVersionKey
}

// Error codes returned in response params
const (
	ErrCodeStaleVersionKey = "ERR_STALE_VERSION_KEY"
	ErrCodeNotFound        = "ERR_NOT_FOUND"
	ErrCodeInvalidRequest  = "ERR_INVALID_REQUEST"
	ErrCodeInternal        = "ERR_INTERNAL"
)
