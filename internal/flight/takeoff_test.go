package flight

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/link/sim"
)

func TestTakeoffRequiresArmed(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)

	outcome, err := c.Takeoff(context.Background(), v, 10)
	if outcome != Failed || !errors.Is(err, ErrPreconditionUnmet) {
		t.Errorf("Takeoff() = %v, %v, want failed, PRECONDITION_UNMET", outcome, err)
	}
	if n := v.Calls(); n != 0 {
		t.Errorf("made %d vehicle calls, want 0", n)
	}
}

func TestTakeoffSwitchesToLoiterAndClimbs(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)
	forceArmed(v)

	outcome, err := c.Takeoff(context.Background(), v, 10)
	if outcome != Converged || err != nil {
		t.Fatalf("Takeoff() = %v, %v, want converged, nil", outcome, err)
	}

	cmds := v.Commands()
	if len(cmds) != 2 {
		t.Fatalf("sent %d commands, want 2", len(cmds))
	}
	if cmds[0].Opcode != link.CmdDoSetMode || cmds[0].Params[1] != 5 {
		t.Errorf("first command = %+v, want DO_SET_MODE LOITER", cmds[0])
	}
	if cmds[1].Opcode != link.CmdNavTakeoff || cmds[1].Params[6] != 10 {
		t.Errorf("second command = %+v, want NAV_TAKEOFF alt 10", cmds[1])
	}
	if alt := v.Snapshot().Position.Alt; alt < 9.5 {
		t.Errorf("altitude = %v, want >= 9.5", alt)
	}
}

func TestTakeoffSteppedClimb(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, func(o *sim.Options) {
		o.Behavior = sim.BehaviorStepped
		o.Tick = time.Millisecond
		o.ClimbRate = 1
	})
	forceArmed(v)

	outcome, err := c.Takeoff(context.Background(), v, 5)
	if outcome != Converged || err != nil {
		t.Errorf("Takeoff() = %v, %v, want converged, nil", outcome, err)
	}
}

func TestTakeoffTimesOut(t *testing.T) {
	c := newTestController()
	c.timing.TakeoffTimeout = 20 * time.Millisecond
	v := newTestVehicle(t, func(o *sim.Options) { o.Behavior = sim.BehaviorStalled })
	forceArmed(v)

	outcome, err := c.Takeoff(context.Background(), v, 10)
	if outcome != TimedOut || !errors.Is(err, ErrConvergenceTimeout) {
		t.Errorf("Takeoff() = %v, %v, want timed_out, CONVERGENCE_TIMEOUT", outcome, err)
	}
	// The LOITER timeout is tolerated; the takeoff is still sent
	if n := len(v.CommandsOf(link.CmdNavTakeoff)); n != 1 {
		t.Errorf("sent %d NAV_TAKEOFF, want 1", n)
	}
}

func TestTakeoffCancelled(t *testing.T) {
	c := newTestController()
	c.timing.TakeoffTimeout = 0
	v := newTestVehicle(t, func(o *sim.Options) { o.Mode = link.ModeLoiter; o.Behavior = sim.BehaviorStalled })
	forceArmed(v)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	outcome, err := c.Takeoff(ctx, v, 10)
	if outcome != Cancelled || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Takeoff() = %v, %v, want cancelled, deadline exceeded", outcome, err)
	}
}
