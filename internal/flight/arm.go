package flight

import (
	"context"
	"errors"
	"fmt"

	"github.com/flight-control/fcc/internal/link"
)

// preArmModes are the modes ArduCopter arms from without a mode change.
var preArmModes = map[link.Mode]bool{
	link.ModeStabilize: true,
	link.ModeLoiter:    true,
}

// Arm arms the vehicle. It is idempotent: an armed vehicle gets no messages.
//
// The sequence waits for the armable flag (ArmReadyPoll / ArmReadyTimeout),
// switches to STABILIZE when the current mode is not a pre-arm mode, sends
// COMPONENT_ARM_DISARM and waits for the ack (AckTimeout), then verifies the
// armed flag. A vehicle that refuses or fails to arm yields ErrArmFailure.
func (c *Controller) Arm(ctx context.Context, v link.Vehicle) error {
	s, err := state(ctx, v, "arm")
	if err != nil {
		return err
	}
	if s.Armed {
		c.log.Info("Vehicle is already armed")
		return nil
	}

	c.log.Info("Waiting for vehicle to become armable")
	outcome, err := waitFor(ctx, c.timing.ArmReadyPoll, c.timing.ArmReadyTimeout, func(ctx context.Context) (bool, error) {
		s, err := v.State(ctx)
		if err != nil {
			return false, err
		}
		if !s.Armable {
			c.log.Debug("Vehicle not armable yet", "gpsFix", s.GPSFix, "status", s.SystemStatus)
		}
		return s.Armable, nil
	})
	switch outcome {
	case Converged:
	case TimedOut:
		c.log.Error("Vehicle did not become armable", "timeout", c.timing.ArmReadyTimeout)
		return fmt.Errorf("%w: not armable after %v", ErrArmFailure, c.timing.ArmReadyTimeout)
	default:
		return fmt.Errorf("arm: %w", err)
	}

	s, err = state(ctx, v, "arm")
	if err != nil {
		return err
	}
	if !preArmModes[s.Mode] {
		if _, err := c.SetMode(ctx, v, link.ModeStabilize); err != nil && !errors.Is(err, ErrModeTransitionTimeout) {
			return fmt.Errorf("arm: %w", err)
		}
		if err := sleep(ctx, c.timing.SettleDelay); err != nil {
			return fmt.Errorf("arm: %w", err)
		}
	}

	c.log.Info("Arming vehicle")
	if err := c.sendArm(ctx, v); err != nil {
		return err
	}

	// The armed flag follows the ack on the next heartbeat
	outcome, err = waitFor(ctx, c.timing.ModePollInterval, c.timing.AckTimeout, func(ctx context.Context) (bool, error) {
		s, err := v.State(ctx)
		if err != nil {
			return false, err
		}
		return s.Armed, nil
	})
	switch outcome {
	case Converged:
		c.log.Info("Vehicle armed")
		return nil
	case TimedOut:
		c.log.Error("Vehicle failed to arm")
		return fmt.Errorf("%w: armed flag not set after accepted arm", ErrArmFailure)
	default:
		return fmt.Errorf("arm: %w", err)
	}
}

// sendArm sends COMPONENT_ARM_DISARM(1) and waits for the ack within AckTimeout.
// Refusals and ack timeouts map to ErrArmFailure; link failures and
// cancellation pass through.
func (c *Controller) sendArm(ctx context.Context, v link.Vehicle) error {
	ackCtx := ctx
	if c.timing.AckTimeout > 0 {
		var cancel context.CancelFunc
		ackCtx, cancel = context.WithTimeout(ctx, c.timing.AckTimeout)
		defer cancel()
	}

	msg := link.CommandMessage{Opcode: link.CmdComponentArmDisarm, AwaitAck: true}
	msg.Params[0] = 1
	_, err := v.SendCommand(ackCtx, msg)

	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("arm: %w", ctx.Err())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, link.ErrTimeout):
		c.log.Error("No arm acknowledgement", "timeout", c.timing.AckTimeout)
		return fmt.Errorf("%w: %v", ErrArmFailure, err)
	case errors.Is(err, link.ErrRejected), errors.Is(err, link.ErrBusy), errors.Is(err, link.ErrUnsupported):
		c.log.Error("Arm refused by vehicle", "error", err)
		return fmt.Errorf("%w: %v", ErrArmFailure, err)
	default:
		return fmt.Errorf("arm: %w", err)
	}
}
