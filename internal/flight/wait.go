package flight

import (
	"context"
	"time"
)

// Outcome is the terminal result of a bounded wait.
type Outcome int

const (
	// Converged means the condition held before the deadline.
	Converged Outcome = iota + 1
	// TimedOut means the deadline passed first.
	TimedOut
	// Cancelled means the context was done first.
	Cancelled
	// Failed means reading the vehicle failed or the wait never started.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Converged:
		return "converged"
	case TimedOut:
		return "timed_out"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// waitFor checks cond immediately and then every interval until it holds.
// A zero timeout waits until ctx is done.
func waitFor(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) (bool, error)) (Outcome, error) {
	ok, err := cond(ctx)
	if err != nil {
		return outcomeOf(ctx, err), err
	}
	if ok {
		return Converged, nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return Cancelled, ctx.Err()
		case <-deadline:
			// One last look so a condition met on the boundary still counts
			ok, err := cond(ctx)
			if err != nil {
				return outcomeOf(ctx, err), err
			}
			if ok {
				return Converged, nil
			}
			return TimedOut, nil
		case <-ticker.C:
			ok, err := cond(ctx)
			if err != nil {
				return outcomeOf(ctx, err), err
			}
			if ok {
				return Converged, nil
			}
		}
	}
}

func outcomeOf(ctx context.Context, err error) Outcome {
	if ctx.Err() != nil {
		return Cancelled
	}
	return Failed
}

// sleep waits d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
