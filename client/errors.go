package client

import (
	"fmt"

	"krakenfeed/models"
)

// Error is the typed error the facade returns for conditions a caller might
// want to branch on (spec.md §7), as opposed to transient errors surfaced
// only through the Events stream as models.ErrorEvent.
type Error struct {
	Kind    models.ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("client: %s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("client: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func newError(kind models.ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}
