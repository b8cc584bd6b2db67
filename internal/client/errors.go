package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgnsrekt/bsdash/internal/request"
)

var (
	ErrBadRequest  = errors.New("request rejected by server")
	ErrNotFound    = errors.New("endpoint not found")
	ErrRateLimited = errors.New("rate limited by server")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
	Details    []request.FieldError
}

func (e *APIError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message))
	for _, d := range e.Details {
		sb.WriteString(fmt.Sprintf("\n  - %s: %s", d.Field, d.Message))
	}
	return sb.String()
}

// Unwrap maps the status code to a sentinel error.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	return nil
}
