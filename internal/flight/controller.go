package flight

import (
	"context"
	"fmt"

	"github.com/flight-control/fcc/internal/config"
	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/log"
)

// Controller runs flight operations against a vehicle handle.
type Controller struct {
	timing config.TimingConfig
	log    *log.Logger
}

// NewController creates a controller with the given timing.
func NewController(timing config.TimingConfig, logger *log.Logger) *Controller {
	return &Controller{timing: timing, log: logger}
}

// Timing returns the controller's timing configuration.
func (c *Controller) Timing() config.TimingConfig {
	return c.timing
}

// WithLogger returns a copy of c logging to logger.
func (c *Controller) WithLogger(logger *log.Logger) *Controller {
	cp := *c
	cp.log = logger
	return &cp
}

// state reads the vehicle snapshot, wrapping failures with op.
func state(ctx context.Context, v link.Vehicle, op string) (*link.State, error) {
	s, err := v.State(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: read state: %w", op, err)
	}
	return s, nil
}

// requireArmed returns ErrPreconditionUnmet, without sending anything, when the vehicle is disarmed.
func (c *Controller) requireArmed(ctx context.Context, v link.Vehicle, op string) (*link.State, error) {
	s, err := state(ctx, v, op)
	if err != nil {
		return nil, err
	}
	if !s.Armed {
		c.log.Warn("Vehicle is not armed, arm first", "op", op)
		return s, fmt.Errorf("%s: %w: vehicle not armed", op, ErrPreconditionUnmet)
	}
	return s, nil
}
