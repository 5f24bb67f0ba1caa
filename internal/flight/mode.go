package flight

import (
	"context"
	"fmt"

	"github.com/flight-control/fcc/internal/link"
)

// SetMode switches the vehicle to target. Nothing is sent when the vehicle is
// already in target. Otherwise one DO_SET_MODE is sent and the mode is polled
// every ModePollInterval for up to ModeTimeout. A timeout is logged and returned
// as ErrModeTransitionTimeout; the caller decides whether to continue.
func (c *Controller) SetMode(ctx context.Context, v link.Vehicle, target link.Mode) (Outcome, error) {
	s, err := state(ctx, v, "set_mode")
	if err != nil {
		return outcomeOf(ctx, err), err
	}
	from := s.Mode
	if from == target {
		c.log.Info("Already in mode", "mode", target)
		return Converged, nil
	}

	id, ok := link.CustomModeID(target)
	if !ok {
		return Failed, fmt.Errorf("set_mode: no custom mode id for %q", target)
	}

	c.log.Info("Sending mode change", "from", from, "to", target)
	msg := link.CommandMessage{Opcode: link.CmdDoSetMode}
	msg.Params[0] = link.ModeFlagCustomModeEnabled
	msg.Params[1] = float32(id)
	if _, err := v.SendCommand(ctx, msg); err != nil {
		return outcomeOf(ctx, err), fmt.Errorf("set_mode: %w", err)
	}

	outcome, err := waitFor(ctx, c.timing.ModePollInterval, c.timing.ModeTimeout, func(ctx context.Context) (bool, error) {
		s, err := v.State(ctx)
		if err != nil {
			return false, err
		}
		if s.Mode != target {
			c.log.Debug("Waiting for mode change", "current", s.Mode, "target", target)
			return false, nil
		}
		return true, nil
	})

	switch outcome {
	case Converged:
		c.log.Info("Mode changed", "mode", target)
		return Converged, nil
	case TimedOut:
		c.log.Error("Mode change failed, later flight commands may fail",
			"from", from, "to", target, "timeout", c.timing.ModeTimeout)
		return TimedOut, fmt.Errorf("%w: %s -> %s after %v", ErrModeTransitionTimeout, from, target, c.timing.ModeTimeout)
	default:
		return outcome, fmt.Errorf("set_mode: %w", err)
	}
}
