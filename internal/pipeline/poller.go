package pipeline

import (
	"context"
	"fmt"
	"time"

	"promoreel/internal/domain"
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext is the production Sleeper.
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// PollFunc re-fetches the status of an operation.
type PollFunc func(ctx context.Context, op domain.AsyncOperation) (domain.AsyncOperation, error)

// Poller waits for an AsyncOperation with a fixed interval and a hard cap on
// the number of polls.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Sleep       Sleeper
}

// Await returns the first observed Done state. It sleeps, polls, and repeats
// at most MaxAttempts times, then fails with domain.ErrTimeout. An operation
// that is already Done is returned without polling. The second return value
// is the number of polls made.
func (p Poller) Await(ctx context.Context, op domain.AsyncOperation, poll PollFunc) (domain.AsyncOperation, int, error) {
	if op.Done {
		return op, 0, nil
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := sleep(ctx, p.Interval); err != nil {
			return op, attempt - 1, err
		}
		next, err := poll(ctx, op)
		if err != nil {
			return op, attempt, fmt.Errorf("poll %s: %w", op.Handle, err)
		}
		if next.Handle == "" {
			next.Handle = op.Handle
		}
		op = next
		if op.Done {
			return op, attempt, nil
		}
	}
	return op, p.MaxAttempts, fmt.Errorf("operation %s not done after %d polls: %w", op.Handle, p.MaxAttempts, domain.ErrTimeout)
}
