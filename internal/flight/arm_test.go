package flight

import (
	"context"
	"errors"
	"testing"

	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/link/sim"
)

func TestArmFromStabilize(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)

	if err := c.Arm(context.Background(), v); err != nil {
		t.Fatalf("Arm() = %v", err)
	}
	if !v.Snapshot().Armed {
		t.Error("vehicle not armed")
	}

	cmds := v.Commands()
	if len(cmds) != 1 || cmds[0].Opcode != link.CmdComponentArmDisarm || cmds[0].Params[0] != 1 || !cmds[0].AwaitAck {
		t.Errorf("commands = %+v, want one acked ARM(1)", cmds)
	}
}

func TestArmIsIdempotent(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)
	ctx := context.Background()

	if err := c.Arm(ctx, v); err != nil {
		t.Fatalf("first Arm() = %v", err)
	}
	if err := c.Arm(ctx, v); err != nil {
		t.Fatalf("second Arm() = %v", err)
	}
	if n := len(v.CommandsOf(link.CmdComponentArmDisarm)); n != 1 {
		t.Errorf("sent %d arm commands, want 1", n)
	}
}

func TestArmSwitchesToStabilizeFirst(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, func(o *sim.Options) { o.Mode = link.ModeGuided })

	if err := c.Arm(context.Background(), v); err != nil {
		t.Fatalf("Arm() = %v", err)
	}

	cmds := v.Commands()
	if len(cmds) != 2 {
		t.Fatalf("sent %d commands, want 2", len(cmds))
	}
	if cmds[0].Opcode != link.CmdDoSetMode || cmds[0].Params[1] != 0 {
		t.Errorf("first command = %+v, want DO_SET_MODE STABILIZE", cmds[0])
	}
	if cmds[1].Opcode != link.CmdComponentArmDisarm {
		t.Errorf("second command = %+v, want COMPONENT_ARM_DISARM", cmds[1])
	}
}

func TestArmFromLoiterKeepsMode(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, func(o *sim.Options) { o.Mode = link.ModeLoiter })

	if err := c.Arm(context.Background(), v); err != nil {
		t.Fatalf("Arm() = %v", err)
	}
	if n := len(v.CommandsOf(link.CmdDoSetMode)); n != 0 {
		t.Errorf("sent %d mode changes from LOITER, want 0", n)
	}
}

func TestArmWaitsForArmable(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, func(o *sim.Options) { o.ArmableAfter = 5 })

	if err := c.Arm(context.Background(), v); err != nil {
		t.Fatalf("Arm() = %v", err)
	}
	if !v.Snapshot().Armed {
		t.Error("vehicle not armed")
	}
}

func TestArmFailures(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*sim.Options)
		wantArmSent bool
	}{
		{"never armable", func(o *sim.Options) { o.ArmableAfter = 1 << 30 }, false},
		{"vehicle denies arm", func(o *sim.Options) { o.RejectArm = true }, true},
		{"accepted but never armed", func(o *sim.Options) { o.IgnoreArm = true }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestController()
			v := newTestVehicle(t, tt.mutate)

			err := c.Arm(context.Background(), v)
			if !errors.Is(err, ErrArmFailure) {
				t.Errorf("Arm() = %v, want ARM_FAILURE", err)
			}
			sent := len(v.CommandsOf(link.CmdComponentArmDisarm)) > 0
			if sent != tt.wantArmSent {
				t.Errorf("arm sent = %v, want %v", sent, tt.wantArmSent)
			}
			if v.Snapshot().Armed {
				t.Error("vehicle armed after failure")
			}
		})
	}
}

func TestArmLinkFailureIsNotArmFailure(t *testing.T) {
	c := newTestController()
	v := newTestVehicle(t, nil)
	v.SetFault(sim.OpCommand, &link.LinkError{Code: link.ErrConnectionFailure})

	err := c.Arm(context.Background(), v)
	if errors.Is(err, ErrArmFailure) || !errors.Is(err, link.ErrConnectionFailure) {
		t.Errorf("Arm() = %v, want CONNECTION_FAILURE", err)
	}
}
