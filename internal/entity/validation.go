package entity

import (
	"errors"
	"strings"
)

// FieldError is a single validation failure attached to an entity field.
// Batch-level failures (e.g. column list errors) use the field of the
// collection they belong to.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects field-level validation failures. It is
// returned instead of committing any partial state.
type ValidationErrors struct {
	Failures []FieldError
}

func (v *ValidationErrors) Add(field, message string) {
	v.Failures = append(v.Failures, FieldError{Field: field, Message: message})
}

func (v *ValidationErrors) Any() bool {
	return len(v.Failures) > 0
}

func (v *ValidationErrors) Messages() []string {
	messages := make([]string, 0, len(v.Failures))
	for _, f := range v.Failures {
		messages = append(messages, f.Message)
	}
	return messages
}

func (v *ValidationErrors) Error() string {
	return strings.Join(v.Messages(), "; ")
}

// IsValidationError reports whether err is a structured validation
// failure rather than a backend error.
func IsValidationError(err error) bool {
	var verr *ValidationErrors
	return errors.As(err, &verr)
}
