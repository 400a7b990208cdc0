package batch

import (
	"errors"
	"fmt"
)

// ErrPollCancelled signals cooperative cancellation of a poll loop. The
// poller exits cleanly; the caller decides how to mark the record.
var ErrPollCancelled = errors.New("poll cancelled")

// SubmissionError wraps a failed batch submission. Submissions are never
// retried at this layer: a retry after an ambiguous failure risks paying
// for a duplicate batch whose id the caller never learns.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("batch submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// NotReadyError is returned when results are requested for a batch that has
// not reached a terminal state.
type NotReadyError struct {
	BatchID string
	Status  string
}

func (e *NotReadyError) Error() string {
	return fmt.Sprintf("batch %s is not ready for result retrieval (status: %s)", e.BatchID, e.Status)
}

// PollTransientError is returned after the local retry budget for a status
// check is exhausted. It escalates a transient I/O problem to a fatal
// pass-level failure.
type PollTransientError struct {
	BatchID  string
	Attempts int
	Err      error
}

func (e *PollTransientError) Error() string {
	return fmt.Sprintf("status poll for batch %s failed after %d attempts: %v", e.BatchID, e.Attempts, e.Err)
}

func (e *PollTransientError) Unwrap() error { return e.Err }

// ErroredResultError carries the remote error message of a request that
// failed at the model layer.
type ErroredResultError struct {
	CustomID string
	Message  string
}

func (e *ErroredResultError) Error() string {
	return fmt.Sprintf("batch request %s errored: %s", e.CustomID, e.Message)
}
