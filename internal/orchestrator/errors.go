package orchestrator

import (
	"errors"
	"fmt"
)

var (
	// ErrBusy is returned when a learner's mailbox is full.
	ErrBusy = errors.New("learner mailbox full")

	// ErrClosed is returned after the engine has shut down.
	ErrClosed = errors.New("engine closed")

	// ErrNoPendingQuiz is returned when an answer arrives for a concept
	// that is not awaiting a submission.
	ErrNoPendingQuiz = errors.New("no quiz awaiting submission for concept")

	// ErrWrongContent is returned when a submission names a quiz other than
	// the one the learner was given.
	ErrWrongContent = errors.New("submission does not match the pending quiz")

	// ErrTurnFailed is returned for a turn left in the failed state. It
	// needs ResetLearner.
	ErrTurnFailed = errors.New("turn failed; reset required")
)

// RetryableError reports that scoring failed transiently and the attempt
// budget is spent. The submission is kept and may be sent again later.
type RetryableError struct {
	Attempts int
	Err      error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("try again later (after %d attempts): %v", e.Attempts, e.Err)
}

func (e *RetryableError) Unwrap() error { return e.Err }

// FatalError reports a failure the turn cannot recover from locally.
type FatalError struct {
	Phase Phase
	Err   error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Phase, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is a RetryableError.
func IsRetryable(err error) bool {
	var re *RetryableError
	return errors.As(err, &re)
}

// IsFatal reports whether err is a FatalError.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
