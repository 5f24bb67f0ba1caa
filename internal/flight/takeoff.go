package flight

import (
	"context"
	"errors"
	"fmt"

	"github.com/flight-control/fcc/internal/link"
)

// takeoffReachedRatio of the target altitude counts as reached.
const takeoffReachedRatio = 0.95

// Takeoff climbs to altitude metres. The vehicle must be armed; otherwise
// ErrPreconditionUnmet is returned with nothing sent.
func (c *Controller) Takeoff(ctx context.Context, v link.Vehicle, altitude float64) (Outcome, error) {
	if _, err := c.requireArmed(ctx, v, "takeoff"); err != nil {
		return Failed, err
	}

	c.log.Info("Switching to LOITER for takeoff")
	if _, err := c.SetMode(ctx, v, link.ModeLoiter); err != nil && !errors.Is(err, ErrModeTransitionTimeout) {
		return outcomeOf(ctx, err), fmt.Errorf("takeoff: %w", err)
	}
	if err := sleep(ctx, c.timing.SettleDelay); err != nil {
		return Cancelled, fmt.Errorf("takeoff: %w", err)
	}

	if s, err := v.State(ctx); err == nil {
		c.log.Info("Mode before takeoff", "mode", s.Mode)
	}

	c.log.Info("Taking off", "altitude", altitude)
	msg := link.CommandMessage{Opcode: link.CmdNavTakeoff}
	msg.Params[6] = float32(altitude)
	if _, err := v.SendCommand(ctx, msg); err != nil {
		return outcomeOf(ctx, err), fmt.Errorf("takeoff: %w", err)
	}

	goal := altitude * takeoffReachedRatio
	outcome, err := waitFor(ctx, c.timing.TakeoffPoll, c.timing.TakeoffTimeout, func(ctx context.Context) (bool, error) {
		s, err := v.State(ctx)
		if err != nil {
			return false, err
		}
		c.log.Info("Climbing", "altitude", fmt.Sprintf("%.2f", s.Position.Alt))
		return s.Position.Alt >= goal, nil
	})

	switch outcome {
	case Converged:
		c.log.Info("Target altitude reached", "altitude", altitude)
		return Converged, nil
	case TimedOut:
		c.log.Error("Target altitude not reached", "altitude", altitude, "timeout", c.timing.TakeoffTimeout)
		return TimedOut, fmt.Errorf("takeoff: %w: %.1fm not reached after %v", ErrConvergenceTimeout, altitude, c.timing.TakeoffTimeout)
	default:
		return outcome, fmt.Errorf("takeoff: %w", err)
	}
}
