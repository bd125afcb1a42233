package profile

import "fmt"

// ValidationError reports a malformed or semantically invalid configuration
// document. It is always fatal to the parse that raised it.
type ValidationError struct {
	Field   string // dotted path of the offending field, empty when document-level
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid profile: %s: %s", e.Field, e.Message)
	}
	return "invalid profile: " + e.Message
}

func validationErrorf(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
