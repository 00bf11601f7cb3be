package edge

import "fmt"

// ErrorCode classifies an error delivered through a callback.
type ErrorCode string

// Error codes surfaced to error-aware callbacks.
const (
	// CodeCallbackTimeout means no response arrived before the deadline.
	CodeCallbackTimeout ErrorCode = "callback.timeout"

	// CodeUnexpected means a response arrived with an unusable shape.
	CodeUnexpected ErrorCode = "unexpected.error"

	// CodeClientClosed means the client shut down before resolution.
	CodeClientClosed ErrorCode = "client.closed"
)

// Error is a coded error delivered to callbacks or returned by the client.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors by code, so errors.Is(err, ErrCallbackTimeout) holds for
// any wrapped error carrying the timeout code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinel instances for errors.Is comparisons.
var (
	ErrCallbackTimeout = &Error{Code: CodeCallbackTimeout, Message: "no response received before the deadline"}
	ErrUnexpected      = &Error{Code: CodeUnexpected, Message: "unexpected response shape"}
	ErrClientClosed    = &Error{Code: CodeClientClosed, Message: "client is closed"}
)

// ValidationError indicates a request declined before dispatch.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}
