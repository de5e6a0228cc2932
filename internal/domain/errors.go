package domain

import "fmt"

// ErrorKind classifies failures so the transport layer can map them to
// status codes without inspecting message text.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindIntegrity      ErrorKind = "integrity"
	KindNotFound       ErrorKind = "not_found"
	KindStateConflict  ErrorKind = "state_conflict"
	KindInvalidToken   ErrorKind = "invalid_token"
	KindImmutableState ErrorKind = "immutable_state"
	KindDelivery       ErrorKind = "delivery"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

func Errf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Wrap(kind ErrorKind, cause error, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	for err != nil {
		if de, ok := err.(*Error); ok {
			return de.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
