package batch

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/minuta/internal/interfaces"
)

const (
	// cancelingRecheckWait is the fixed pause before re-checking a batch
	// that the remote API reports as "canceling". It does not consume a
	// normal interval tick.
	cancelingRecheckWait = 10 * time.Second

	// statusRetryAttempts is the total attempt budget for one status check.
	statusRetryAttempts = 3

	// statusRetryCap bounds the exponential backoff between attempts.
	statusRetryCap = 30 * time.Second
)

// PollInterval returns the delay before the next status check as a function
// of elapsed time since submission. Batches normally take most of an hour,
// so checks start sparse and tighten as the expected completion approaches.
func PollInterval(elapsed time.Duration) time.Duration {
	switch {
	case elapsed < 30*time.Minute:
		return 5 * time.Minute
	case elapsed < 45*time.Minute:
		return 3 * time.Minute
	case elapsed < 55*time.Minute:
		return time.Minute
	default:
		return 30 * time.Second
	}
}

// PollProgress is one observation emitted during polling. Snapshots are
// emitted at most once per poll attempt with strictly increasing Elapsed.
type PollProgress struct {
	BatchID   string
	Status    string
	Counts    interfaces.BatchRequestCounts
	Elapsed   time.Duration
	NextCheck time.Duration
}

// ProgressFunc receives poll progress snapshots.
type ProgressFunc func(PollProgress)

// CancelFlag is a cooperative cancellation signal shared between the poll
// loop and its controller. The loop checks it before sleeping and again
// after waking, so a set flag takes effect within one sleep interval.
type CancelFlag struct {
	flag atomic.Bool
}

// Set marks the flag. Safe for concurrent use.
func (f *CancelFlag) Set() {
	if f != nil {
		f.flag.Store(true)
	}
}

// IsSet reports whether the flag has been set. A nil flag is never set.
func (f *CancelFlag) IsSet() bool {
	return f != nil && f.flag.Load()
}

// Poller repeatedly checks a batch's status until it reaches a terminal
// state, adapting the check interval to the elapsed wait time. The clock
// and sleep functions are injectable so tests can drive the schedule
// without real waiting.
type Poller struct {
	service interfaces.BatchService
	logger  arbor.ILogger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller creates a poller over the given batch service.
func NewPoller(service interfaces.BatchService, logger arbor.ILogger) *Poller {
	return &Poller{
		service: service,
		logger:  logger,
		now:     time.Now,
		sleep:   sleepContext,
	}
}

// sleepContext waits for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Wait polls the batch until it ends, returning the final status. since is
// the batch submission time and anchors the adaptive interval schedule.
//
// Non-terminal observations emit exactly one progress snapshot each before
// sleeping. Transient status-check failures are retried locally up to the
// attempt budget with capped exponential backoff; exhaustion returns a
// *PollTransientError. A set cancel flag (or done context) makes Wait
// return ErrPollCancelled without error-marking anything: the caller owns
// the record's cancelled state.
func (p *Poller) Wait(ctx context.Context, batchID string, since time.Time, cancel *CancelFlag, progress ProgressFunc) (*interfaces.BatchStatus, error) {
	for {
		if cancel.IsSet() || ctx.Err() != nil {
			return nil, ErrPollCancelled
		}

		status, err := p.getStatusWithRetry(ctx, batchID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ErrPollCancelled
			}
			return nil, err
		}

		switch status.Status {
		case interfaces.BatchStatusEnded:
			p.logger.Debug().
				Str("batch_id", batchID).
				Int64("succeeded", status.Counts.Succeeded).
				Int64("errored", status.Counts.Errored).
				Msg("Batch ended")
			return status, nil

		case interfaces.BatchStatusCanceling:
			// Cancellation is settling remotely; re-check after a short
			// fixed pause instead of a full interval tick.
			if err := p.waitInterruptible(ctx, cancelingRecheckWait, cancel); err != nil {
				return nil, err
			}

		default:
			elapsed := p.now().Sub(since)
			interval := PollInterval(elapsed)

			if progress != nil {
				progress(PollProgress{
					BatchID:   batchID,
					Status:    status.Status,
					Counts:    status.Counts,
					Elapsed:   elapsed,
					NextCheck: interval,
				})
			}

			p.logger.Debug().
				Str("batch_id", batchID).
				Str("status", status.Status).
				Str("elapsed", elapsed.String()).
				Str("next_check", interval.String()).
				Msg("Batch still processing")

			if err := p.waitInterruptible(ctx, interval, cancel); err != nil {
				return nil, err
			}
		}
	}
}

// waitInterruptible sleeps for d, honoring the cancel flag both before
// sleeping and immediately after waking.
func (p *Poller) waitInterruptible(ctx context.Context, d time.Duration, cancel *CancelFlag) error {
	if cancel.IsSet() {
		return ErrPollCancelled
	}
	if err := p.sleep(ctx, d); err != nil {
		return ErrPollCancelled
	}
	if cancel.IsSet() {
		return ErrPollCancelled
	}
	return nil
}

// getStatusWithRetry performs one status check with a local retry budget
// for transient failures: up to statusRetryAttempts attempts, backoff
// 1s*2^attempt capped at statusRetryCap.
func (p *Poller) getStatusWithRetry(ctx context.Context, batchID string) (*interfaces.BatchStatus, error) {
	var status *interfaces.BatchStatus

	err := retry.Do(
		func() error {
			s, err := p.service.GetStatus(ctx, batchID)
			if err != nil {
				return err
			}
			status = s
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(statusRetryAttempts),
		retry.DelayType(func(n uint, err error, config *retry.Config) time.Duration {
			backoff := time.Second << n
			if backoff > statusRetryCap {
				backoff = statusRetryCap
			}
			return backoff
		}),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			p.logger.Warn().
				Err(err).
				Str("batch_id", batchID).
				Int("attempt", int(n)+1).
				Msg("Transient status check failure, retrying")
		}),
	)
	if err != nil {
		return nil, &PollTransientError{BatchID: batchID, Attempts: statusRetryAttempts, Err: err}
	}

	return status, nil
}
