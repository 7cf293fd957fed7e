package mcpsession

import "fmt"

// Kind is one of §7's four McpSession-owned error kinds.
type Kind string

const (
	KindToolNotFound  Kind = "ToolNotFound"
	KindCancelled     Kind = "Cancelled"
	KindProtocolError Kind = "ProtocolError"
	KindAuthRequired  Kind = "AuthRequired"
)

// Error is a session-level failure, carrying enough detail to shape
// both a JSON-RPC error object and a log line.
type Error struct {
	Kind    Kind
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

func newError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ErrToolNotFound builds a ToolNotFound session error for name.
func ErrToolNotFound(name string) *Error {
	return newError(KindToolNotFound, fmt.Sprintf("tool %q not found", name), nil)
}

// ErrCancelled builds a Cancelled session error for the given request id.
func ErrCancelled(id string) *Error {
	return newError(KindCancelled, fmt.Sprintf("request %s cancelled", id), nil)
}

// ErrProtocol builds a ProtocolError. Handle closes the session only
// for the error it returns on a call made before initialize; every
// other ProtocolError leaves the session open.
func ErrProtocol(message string, cause error) *Error {
	return newError(KindProtocolError, message, cause)
}

// ErrAuthRequired builds an AuthRequired session error.
func ErrAuthRequired(message string) *Error {
	return newError(KindAuthRequired, message, nil)
}
