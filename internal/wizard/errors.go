package wizard

import "fmt"

// decodeError wraps a guided I/O read failure with its diagnostic text.
type decodeError struct {
	path string
	err  error
}

func (e decodeError) Error() string { return fmt.Sprintf("decode %s: %v", e.path, e.err) }
func (e decodeError) Unwrap() error { return e.err }

// ErrDecode constructs a decode failure for path.
func ErrDecode(path string, err error) error { return decodeError{path: path, err: err} }

// IsDecode reports whether err is a decode failure.
func IsDecode(err error) bool { _, ok := err.(decodeError); return ok }

// encodeError wraps a guided I/O write failure.
type encodeError struct {
	path string
	err  error
}

func (e encodeError) Error() string { return fmt.Sprintf("encode %s: %v", e.path, e.err) }
func (e encodeError) Unwrap() error { return e.err }

// ErrEncode constructs an encode failure for path.
func ErrEncode(path string, err error) error { return encodeError{path: path, err: err} }

// IsEncode reports whether err is an encode failure.
func IsEncode(err error) bool { _, ok := err.(encodeError); return ok }

// validationError signals that a delegate or precondition check rejected the
// operation. The partially processed image is discarded, never exposed.
type validationError struct{ msg string }

func (e validationError) Error() string { return e.msg }

// ErrValidation constructs a validation failure with a human-readable reason.
func ErrValidation(msg string) error { return validationError{msg: msg} }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { _, ok := err.(validationError); return ok }

// uninitializedError signals an operation invoked before InitializeForLoad or
// InitializeForSave.
type uninitializedError struct{ op string }

func (e uninitializedError) Error() string { return e.op + ": wizard model not initialized" }

// ErrUninitialized constructs an uninitialized-model error for operation op.
func ErrUninitialized(op string) error { return uninitializedError{op: op} }

// IsUninitialized reports whether err indicates a missing initialization.
func IsUninitialized(err error) bool { _, ok := err.(uninitializedError); return ok }

// registrationPreconditionError signals a registration start without the
// required images or with registration disabled.
type registrationPreconditionError struct{ msg string }

func (e registrationPreconditionError) Error() string { return e.msg }

// ErrRegistrationPrecondition constructs a registration precondition failure.
func ErrRegistrationPrecondition(msg string) error { return registrationPreconditionError{msg: msg} }

// IsRegistrationPrecondition reports whether err indicates registration was
// started before its preconditions held.
func IsRegistrationPrecondition(err error) bool {
	_, ok := err.(registrationPreconditionError)
	return ok
}
