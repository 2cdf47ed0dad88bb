package workflow

import "errors"

type nonRetriableError struct {
	err error
}

func (e *nonRetriableError) Error() string { return e.err.Error() }

func (e *nonRetriableError) Unwrap() error { return e.err }

// NonRetriable marks err as permanent: the run fails immediately and no
// further attempts are made.
func NonRetriable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetriableError{err: err}
}

// IsNonRetriable reports whether err, or anything it wraps, was marked with
// NonRetriable.
func IsNonRetriable(err error) bool {
	var target *nonRetriableError
	return errors.As(err, &target)
}
