package flight

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWaitForConvergesImmediately(t *testing.T) {
	calls := 0
	outcome, err := waitFor(context.Background(), time.Hour, time.Hour, func(context.Context) (bool, error) {
		calls++
		return true, nil
	})
	if outcome != Converged || err != nil {
		t.Errorf("waitFor() = %v, %v, want converged, nil", outcome, err)
	}
	if calls != 1 {
		t.Errorf("cond called %d times, want 1", calls)
	}
}

func TestWaitForConvergesAfterPolls(t *testing.T) {
	calls := 0
	outcome, err := waitFor(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		calls++
		return calls >= 3, nil
	})
	if outcome != Converged || err != nil {
		t.Errorf("waitFor() = %v, %v, want converged, nil", outcome, err)
	}
}

func TestWaitForTimesOut(t *testing.T) {
	start := time.Now()
	outcome, err := waitFor(context.Background(), time.Millisecond, 20*time.Millisecond, func(context.Context) (bool, error) {
		return false, nil
	})
	if outcome != TimedOut || err != nil {
		t.Errorf("waitFor() = %v, %v, want timed_out, nil", outcome, err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("returned after %v, before the timeout", elapsed)
	}
}

func TestWaitForCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	// Zero timeout: only cancellation ends the wait
	outcome, err := waitFor(ctx, time.Millisecond, 0, func(context.Context) (bool, error) {
		return false, nil
	})
	if outcome != Cancelled || !errors.Is(err, context.Canceled) {
		t.Errorf("waitFor() = %v, %v, want cancelled, context.Canceled", outcome, err)
	}
}

func TestWaitForConditionError(t *testing.T) {
	boom := errors.New("link lost")
	outcome, err := waitFor(context.Background(), time.Millisecond, time.Second, func(context.Context) (bool, error) {
		return false, boom
	})
	if outcome != Failed || !errors.Is(err, boom) {
		t.Errorf("waitFor() = %v, %v, want failed, %v", outcome, err, boom)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleep() = %v, want context.Canceled", err)
	}
	if err := sleep(context.Background(), 0); err != nil {
		t.Errorf("sleep(0) = %v, want nil", err)
	}
}

func TestOutcomeString(t *testing.T) {
	tests := map[Outcome]string{
		Converged:  "converged",
		TimedOut:   "timed_out",
		Cancelled:  "cancelled",
		Failed:     "failed",
		Outcome(0): "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", int(o), got, want)
		}
	}
}
