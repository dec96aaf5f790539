package gpu

import (
	"errors"
	"fmt"
)

// Error kinds. Every fatal condition raised by this engine carries exactly one of them so callers can
// classify a recovered failure with errors.Is.
var (
	// ErrTypeMismatch is raised when typed data is bound or read with an element type other than the one the resource holds.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrSizeMismatch is raised when a host array does not match the length of the device resource it is copied to or from.
	ErrSizeMismatch = errors.New("size mismatch")
	// ErrDevice is raised when the device or driver reports a failure after a device-affecting call.
	ErrDevice = errors.New("device error")
	// ErrCreation is raised when a resource or program cannot be created.
	ErrCreation = errors.New("creation failed")
	// ErrState is raised when a resource is used outside of its lifecycle, e.g. after release.
	ErrState = errors.New("invalid state")
)

// Error is the panic value for fatal engine conditions. These are programming or driver defects and
// are not recovered from inside the engine; the process entry point converts them to an exit status.
type Error struct {
	// Op names the operation that failed, e.g. "buffer.ReadInto".
	Op string
	// Kind is one of the Err* sentinels.
	Kind error
	// Err is the underlying cause or diagnostic.
	Err error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("gpu: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("gpu: %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Fatalf panics with an *Error of the given kind.
//
// Parameters:
//   - op: the operation that failed
//   - kind: one of the Err* sentinels
//   - format: a fmt format string describing the failure
//   - args: the format arguments
func Fatalf(op string, kind error, format string, args ...any) {
	panic(&Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)})
}

// Check panics with an ErrDevice *Error if err is non-nil.
//
// Parameters:
//   - op: the operation that produced err
//   - err: the error returned by the driver call
func Check(op string, err error) {
	if err != nil {
		panic(&Error{Op: op, Kind: ErrDevice, Err: err})
	}
}

// Catch runs fn and converts a fatal *Error panic into a returned error. Any other panic is re-raised.
//
// Parameters:
//   - fn: the function to run
//
// Returns:
//   - error: the *Error raised by fn, or nil if fn returned normally
func Catch(fn func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if e, ok := r.(*Error); ok {
			err = e
			return
		}
		panic(r)
	}()
	fn()
	return nil
}
