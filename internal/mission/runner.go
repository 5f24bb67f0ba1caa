// Package mission runs command sequences in the background, one at a time.
package mission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flight-control/fcc/internal/command"
	"github.com/flight-control/fcc/internal/log"
)

var (
	// ErrBusy is returned by Start while a mission is running.
	ErrBusy = errors.New("BUSY")

	// ErrNotRunning is returned by Cancel when no mission is running.
	ErrNotRunning = errors.New("NOT_RUNNING")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("RUNNER_CLOSED")
)

// Executor runs one sequence. *command.Dispatcher implements it.
type Executor interface {
	Execute(ctx context.Context, entries []command.Entry) *command.Report
}

var _ Executor = (*command.Dispatcher)(nil)

// State is the lifecycle state of a mission.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateCancelled State = "cancelled"
)

// Status describes the current or last mission.
type Status struct {
	ID         string          `json:"id,omitempty"`
	State      State           `json:"state"`
	Entries    int             `json:"entries"`
	StartedAt  time.Time       `json:"startedAt,omitempty"`
	FinishedAt time.Time       `json:"finishedAt,omitempty"`
	Report     *command.Report `json:"report,omitempty"`
}

// Runner executes missions on a worker goroutine.
type Runner struct {
	exec Executor
	log  *log.Logger

	wg sync.WaitGroup

	mu        sync.Mutex
	seq       int
	status    Status
	cancelRun context.CancelFunc
	cancelled bool
	done      chan struct{}
	closed    bool
}

// NewRunner creates an idle runner.
func NewRunner(exec Executor, logger *log.Logger) *Runner {
	done := make(chan struct{})
	close(done)
	return &Runner{
		exec:   exec,
		log:    logger,
		status: Status{State: StateIdle},
		done:   done,
	}
}

// Start runs entries in the background. Values of ctx (such as the audit
// actor) are kept; its cancellation is not, so a finished request does not
// stop the mission.
func (r *Runner) Start(ctx context.Context, entries []command.Entry) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return r.status, ErrClosed
	}
	if r.status.State == StateRunning {
		return r.status, fmt.Errorf("%w: mission %s is running", ErrBusy, r.status.ID)
	}

	r.seq++
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	r.status = Status{
		ID:        fmt.Sprintf("mission-%d", r.seq),
		State:     StateRunning,
		Entries:   len(entries),
		StartedAt: time.Now(),
	}
	r.cancelRun = cancel
	r.cancelled = false
	r.done = make(chan struct{})

	id, done := r.status.ID, r.done
	r.wg.Add(1)
	go r.run(runCtx, cancel, id, entries, done)

	r.log.Info("Mission started", "mission", id, "entries", len(entries))
	return r.status, nil
}

func (r *Runner) run(ctx context.Context, cancel context.CancelFunc, id string, entries []command.Entry, done chan struct{}) {
	defer r.wg.Done()
	defer close(done)
	defer cancel()

	report := r.exec.Execute(ctx, entries)

	r.mu.Lock()
	defer r.mu.Unlock()

	state := StateCompleted
	switch {
	case r.cancelled:
		state = StateCancelled
	case report.Aborted && report.AbortReason != command.AbortClosed:
		state = StateAborted
	}

	r.status.State = state
	r.status.Report = report
	r.status.FinishedAt = time.Now()
	r.cancelRun = nil
	r.log.Info("Mission finished", "mission", id, "state", state, "steps", len(report.Steps))
}

// Cancel stops the running mission through its context.
func (r *Runner) Cancel() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status.State != StateRunning || r.cancelRun == nil {
		return ErrNotRunning
	}
	r.cancelled = true
	r.cancelRun()
	r.log.Warn("Mission cancelled", "mission", r.status.ID)
	return nil
}

// Status returns the current or last mission.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Wait blocks until the current mission finishes or ctx is done.
func (r *Runner) Wait(ctx context.Context) (Status, error) {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()

	select {
	case <-done:
		return r.Status(), nil
	case <-ctx.Done():
		return r.Status(), ctx.Err()
	}
}

// Close cancels any running mission and waits for the worker to exit.
func (r *Runner) Close() {
	r.mu.Lock()
	r.closed = true
	if r.cancelRun != nil {
		r.cancelled = true
		r.cancelRun()
	}
	r.mu.Unlock()

	r.wg.Wait()
}
