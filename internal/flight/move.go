package flight

import (
	"context"
	"fmt"

	"github.com/flight-control/fcc/internal/link"
)

// MoveRelative flies distance metres along a compass heading in degrees,
// keeping the current altitude. The vehicle must be armed; otherwise
// ErrPreconditionUnmet is returned with nothing sent.
func (c *Controller) MoveRelative(ctx context.Context, v link.Vehicle, heading, distance float64) (Outcome, error) {
	s, err := c.requireArmed(ctx, v, "move_relative")
	if err != nil {
		return Failed, err
	}

	dest := Destination(s.Position, heading, distance)
	c.log.Info("Moving relative", "heading", heading, "distance", distance, "target", dest.String())

	if err := v.GoTo(ctx, dest); err != nil {
		return outcomeOf(ctx, err), fmt.Errorf("move_relative: %w", err)
	}

	radius := c.timing.ArrivalRadius
	outcome, err := waitFor(ctx, c.timing.MovePoll, c.timing.MoveTimeout, func(ctx context.Context) (bool, error) {
		s, err := v.State(ctx)
		if err != nil {
			return false, err
		}
		remaining := PlanarDistance(s.Position, dest)
		c.log.Info("Distance to target", "remaining", fmt.Sprintf("%.2f", remaining))
		return remaining <= radius, nil
	})

	switch outcome {
	case Converged:
		c.log.Info("Arrived at target")
		return Converged, nil
	case TimedOut:
		c.log.Error("Target not reached", "target", dest.String(), "timeout", c.timing.MoveTimeout)
		return TimedOut, fmt.Errorf("move_relative: %w: target not reached after %v", ErrConvergenceTimeout, c.timing.MoveTimeout)
	default:
		return outcome, fmt.Errorf("move_relative: %w", err)
	}
}

// Destination is the point distance metres from origin along heading degrees.
func Destination(origin link.Location, heading, distance float64) link.Location {
	return Project(origin, OffsetFromHeading(heading, distance))
}
