package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
)

// HTTPError is a non-2xx reply from an external service.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.Status, e.Body)
}

// Detail extracts the server's "detail" field from the error body, if any.
func (e *HTTPError) Detail() string {
	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal([]byte(e.Body), &payload); err != nil {
		return ""
	}
	return payload.Detail
}

// NetworkError is a transport-level failure before any HTTP status arrived.
type NetworkError struct {
	URL string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("calling %s: %v", e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ErrorDetail returns the server-provided detail for an HTTP failure, or
// empty when the error carries none.
func ErrorDetail(err error) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Detail()
	}
	return ""
}
