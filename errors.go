package arcache

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned when the operation budget ran out before the
	// backend answered. The task that returned it can be awaited again.
	ErrTimeout = errors.New("arcache: operation timed out")
	// ErrCancelled is returned by tasks after Cancel.
	ErrCancelled = errors.New("arcache: task cancelled")
	// ErrInvalidArgument is returned before any backend call for unusable
	// keys, group names, timeouts or options.
	ErrInvalidArgument = errors.New("arcache: invalid argument")
	// ErrUnexpectedType matches every *UnexpectedTypeError.
	ErrUnexpectedType = errors.New("arcache: unexpected stored type")
)

// UnexpectedTypeError reports a backend value that is not the entry type the
// client expected under that key.
type UnexpectedTypeError struct {
	Key      string
	Expected string
	Got      string
}

func (e *UnexpectedTypeError) Error() string {
	return fmt.Sprintf("arcache: key %q holds %s, expected %s", e.Key, e.Got, e.Expected)
}

func (e *UnexpectedTypeError) Is(target error) bool { return target == ErrUnexpectedType }

// InvalidateError wraps a failed group invalidation.
type InvalidateError struct {
	Group string
	Err   error
}

func (e *InvalidateError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalidate %q: unknown error", e.Group)
	}
	return fmt.Sprintf("invalidate %q: %v", e.Group, e.Err)
}

func (e *InvalidateError) Unwrap() error { return e.Err }

func invalidArg(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// classify maps a backend fault onto the client's error vocabulary.
func classify(err error) (ResultType, error) {
	switch {
	case errors.Is(err, ErrTimeout):
		return Timeout, err
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout, fmt.Errorf("%w: %w", ErrTimeout, err)
	default:
		return Error, err
	}
}

func typeName(v any) string { return fmt.Sprintf("%T", v) }
