package engine

import (
	"errors"

	"github.com/okian/perfscore/internal/adapters/repository"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrValidation marks a missing or malformed argument. Not retried.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an absent team or user.
	ErrNotFound = errors.New("not found")
	// ErrTransientStore marks a failed store call. Retrying is up to the caller.
	ErrTransientStore = errors.New("transient store failure")
	// ErrDataIntegrity marks malformed stored data, such as a team id that is
	// not a valid store key. Logged and skipped, never returned by recompute.
	ErrDataIntegrity = errors.New("data integrity warning")
)

// Error carries the failing operation and its kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the error's kind.
func (e *Error) Is(target error) bool { return target == e.Kind }

func newError(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps a store error to its kind.
func classify(op string, err error) error {
	var ee *Error
	if errors.As(err, &ee) {
		return err
	}
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return newError(op, ErrNotFound, err)
	case errors.Is(err, repository.ErrInvalidKey):
		return newError(op, ErrDataIntegrity, err)
	default:
		return newError(op, ErrTransientStore, err)
	}
}
