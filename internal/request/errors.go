package request

import (
	"fmt"
	"strings"
)

// FieldError is a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every rejected field of a request so the caller
// can fix them all at once.
type ValidationErrors struct {
	Fields []FieldError `json:"fields"`
}

// Add records a failure for field.
func (e *ValidationErrors) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Fields) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("request validation failed:")
	for _, f := range e.Fields {
		sb.WriteString(fmt.Sprintf("\n  - %s: %s", f.Field, f.Message))
	}
	return sb.String()
}

// orNil returns e when it holds errors, nil otherwise.
func (e *ValidationErrors) orNil() error {
	if e.HasErrors() {
		return e
	}
	return nil
}
