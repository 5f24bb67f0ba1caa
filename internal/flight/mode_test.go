package flight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/link/sim"
)

func TestSetModeAlreadyInTargetSendsNothing(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)

	outcome, err := c.SetMode(context.Background(), v, link.ModeStabilize)
	if outcome != Converged || err != nil {
		t.Errorf("SetMode() = %v, %v, want converged, nil", outcome, err)
	}
	if n := len(v.Commands()); n != 0 {
		t.Errorf("sent %d commands, want 0", n)
	}
}

func TestSetModeSendsOneMessage(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)
	ctx := context.Background()

	outcome, err := c.SetMode(ctx, v, link.ModeGuided)
	if outcome != Converged || err != nil {
		t.Fatalf("SetMode() = %v, %v, want converged, nil", outcome, err)
	}

	// A repeated request with no external mode change is a no-op
	if _, err := c.SetMode(ctx, v, link.ModeGuided); err != nil {
		t.Fatalf("second SetMode() = %v", err)
	}

	cmds := v.CommandsOf(link.CmdDoSetMode)
	if len(cmds) != 1 {
		t.Fatalf("sent %d DO_SET_MODE, want 1", len(cmds))
	}
	if cmds[0].Params[0] != link.ModeFlagCustomModeEnabled || cmds[0].Params[1] != 4 {
		t.Errorf("DO_SET_MODE params = %v, want [1 4 ...]", cmds[0].Params)
	}
	if got := v.Snapshot().Mode; got != link.ModeGuided {
		t.Errorf("Mode = %s, want GUIDED", got)
	}
}

func TestSetModeSteppedConverges(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, func(o *sim.Options) {
		o.Behavior = sim.BehaviorStepped
		o.Tick = time.Millisecond
	})

	outcome, err := c.SetMode(context.Background(), v, link.ModeLoiter)
	if outcome != Converged || err != nil {
		t.Errorf("SetMode() = %v, %v, want converged, nil", outcome, err)
	}
}

func TestSetModeTimesOut(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, func(o *sim.Options) { o.Behavior = sim.BehaviorStalled })

	outcome, err := c.SetMode(context.Background(), v, link.ModeGuided)
	if outcome != TimedOut {
		t.Errorf("SetMode() outcome = %v, want timed_out", outcome)
	}
	if !errors.Is(err, ErrModeTransitionTimeout) {
		t.Errorf("SetMode() error = %v, want MODE_TRANSITION_TIMEOUT", err)
	}
	if n := len(v.CommandsOf(link.CmdDoSetMode)); n != 1 {
		t.Errorf("sent %d DO_SET_MODE, want exactly 1 (no retries)", n)
	}
}

func TestSetModeLinkFailure(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)
	v.SetFault(sim.OpCommand, &link.LinkError{Code: link.ErrClosed})

	outcome, err := c.SetMode(context.Background(), v, link.ModeGuided)
	if outcome != Failed || !errors.Is(err, link.ErrClosed) {
		t.Errorf("SetMode() = %v, %v, want failed, LINK_CLOSED", outcome, err)
	}
}

func TestSetModeCancelled(t *testing.T) {
	c := newTestController()
	c.timing.ModeTimeout = 0
	v := newTestVehicle(t, func(o *sim.Options) { o.Behavior = sim.BehaviorStalled })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var outcome Outcome
	var err error
	go func() {
		outcome, err = c.SetMode(ctx, v, link.ModeGuided)
		close(done)
	}()
	cancel()
	<-done

	if outcome != Cancelled || !errors.Is(err, context.Canceled) {
		t.Errorf("SetMode() = %v, %v, want cancelled, context.Canceled", outcome, err)
	}
}
