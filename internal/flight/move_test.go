package flight

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/link/sim"
)

func TestMoveRelativeRequiresArmed(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)

	outcome, err := c.MoveRelative(context.Background(), v, 90, 50)
	if outcome != Failed || !errors.Is(err, ErrPreconditionUnmet) {
		t.Errorf("MoveRelative() = %v, %v, want failed, PRECONDITION_UNMET", outcome, err)
	}
	if n := v.Calls(); n != 0 {
		t.Errorf("made %d vehicle calls, want 0", n)
	}
}

func TestMoveRelativeEast(t *testing.T) {
	c := newTestController()
	home := link.Location{Lat: 0, Lon: 0, Alt: 10}
	v := newTestVehicle(t, func(o *sim.Options) { o.Home = home })
	forceArmed(v)

	outcome, err := c.MoveRelative(context.Background(), v, 90, 50)
	if outcome != Converged || err != nil {
		t.Fatalf("MoveRelative() = %v, %v, want converged, nil", outcome, err)
	}

	gotos := v.GoTos()
	if len(gotos) != 1 {
		t.Fatalf("sent %d go-to, want 1", len(gotos))
	}
	dest := gotos[0]
	north := (dest.Lat - home.Lat) * math.Pi / 180 * EarthRadius
	east := (dest.Lon - home.Lon) * math.Pi / 180 * EarthRadius
	if math.Abs(north) > 1e-6 || math.Abs(east-50) > 1e-6 {
		t.Errorf("offset = north %.6f east %.6f, want 0, 50", north, east)
	}
	if dest.Alt != 10 {
		t.Errorf("destination Alt = %v, want 10", dest.Alt)
	}
}

func TestMoveRelativeStepped(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, func(o *sim.Options) {
		o.Behavior = sim.BehaviorStepped
		o.Tick = time.Millisecond
		o.Speed = 20
	})
	forceArmed(v)

	outcome, err := c.MoveRelative(context.Background(), v, 0, 100)
	if outcome != Converged || err != nil {
		t.Errorf("MoveRelative() = %v, %v, want converged, nil", outcome, err)
	}
}

func TestMoveRelativeTimesOut(t *testing.T) {
	c := newTestController()
	c.timing.MoveTimeout = 20 * time.Millisecond
	v := newTestVehicle(t, func(o *sim.Options) { o.Behavior = sim.BehaviorStalled })
	forceArmed(v)

	outcome, err := c.MoveRelative(context.Background(), v, 180, 30)
	if outcome != TimedOut || !errors.Is(err, ErrConvergenceTimeout) {
		t.Errorf("MoveRelative() = %v, %v, want timed_out, CONVERGENCE_TIMEOUT", outcome, err)
	}
}

func TestMoveRelativeGoToRejected(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)
	forceArmed(v)
	v.SetFault(sim.OpGoTo, &link.LinkError{Code: link.ErrRejected})

	outcome, err := c.MoveRelative(context.Background(), v, 0, 10)
	if outcome != Failed || !errors.Is(err, link.ErrRejected) {
		t.Errorf("MoveRelative() = %v, %v, want failed, REJECTED", outcome, err)
	}
}
