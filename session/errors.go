package session

import (
	"errors"
	"fmt"
)

// Local precondition errors — surfaced to the caller, never end the session.
var (
	ErrNotJoined       = errors.New("session: not joined")
	ErrAlreadyJoined   = errors.New("session: already joined")
	ErrTimeout         = errors.New("session: call timed out")
	ErrInvalidArgument = errors.New("session: invalid argument")
	ErrNotImplemented  = errors.New("session: not implemented")
)

// ErrDisconnected is returned to every pending operation when the
// transport is lost or the session is stopped while operations are
// in flight.
var ErrDisconnected = errors.New("session: disconnected")

// Protocol errors. The dispatch loop does not return ErrUnexpectedMessage:
// a WELCOME, CHALLENGE or GOODBYE that arrives in a state that does not
// expect it is logged and ignored, and the session stays open.
var (
	ErrUnexpectedMessage = errors.New("session: unexpected message for current state")
)

// ApplicationError carries a WAMP ERROR reply: a URI plus optional
// positional/keyword detail. It is the error type Call/Subscribe/
// Register/Unregister fail with when the router replies ERROR, and the
// error type a procedure handler should return (via NewApplicationError)
// to control the URI sent back to the caller.
type ApplicationError struct {
	URI    string
	Args   []interface{}
	Kwargs map[string]interface{}
}

// NewApplicationError builds an ApplicationError a procedure handler can
// return to control the URI of the ERROR reply sent to the caller.
func NewApplicationError(uri string, args []interface{}, kwargs map[string]interface{}) *ApplicationError {
	return &ApplicationError{URI: uri, Args: args, Kwargs: kwargs}
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("session: application error %q", e.URI)
}

// AbortError is returned by Join when the router sends ABORT instead of
// WELCOME.
type AbortError struct {
	Reason  string
	Details map[string]interface{}
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("session: join aborted: %s", e.Reason)
}

// defaultRuntimeErrorURI is sent back when a procedure handler returns a
// plain error that isn't an *ApplicationError.
const defaultRuntimeErrorURI = "wamp.error.runtime_error"
