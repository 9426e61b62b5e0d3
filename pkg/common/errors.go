package common

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned when an operation requires an AI API key
// and none is configured. It fails fast and is never retried silently.
var ErrMissingCredential = errors.New("missing ai credential")

// NotFoundError reports that a referenced record does not exist.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// NewNotFound returns a NotFoundError for the given record kind and id.
func NewNotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
