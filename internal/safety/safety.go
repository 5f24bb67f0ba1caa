// Package safety disables the vehicle's protective interlocks for test flights.
//
// The override is irreversible for the life of a session: nothing in fcc
// re-enables the parameters. It is applied only on explicit opt-in, and a
// target not declared as simulated additionally needs a hardware confirmation.
package safety

import (
	"context"
	"errors"
	"fmt"

	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/log"
)

// ErrHardwareNotConfirmed is returned when the override is requested for a
// non-simulated target without confirmation.
var ErrHardwareNotConfirmed = errors.New("HARDWARE_NOT_CONFIRMED")

// Interlocks lists the parameters set to 0, in order: ground-station-loss
// failsafe, throttle failsafe, battery failsafe, crash check, geofence, pre-arm checks.
var Interlocks = []string{
	"FS_GCS_ENABLE",
	"FS_THR_ENABLE",
	"FS_BATT_ENABLE",
	"FS_CRASH_CHECK",
	"FENCE_ENABLE",
	"ARMING_CHECK",
}

// Policy decides whether the override may be applied.
type Policy struct {
	DisableInterlocks bool
	ConfirmHardware   bool
}

// Result reports what Apply did per parameter.
type Result struct {
	Applied []string          `json:"applied"`
	Failed  map[string]string `json:"failed,omitempty"`
}

// Configurator applies the interlock override.
type Configurator struct {
	policy Policy
	log    *log.Logger
}

// NewConfigurator creates a configurator for policy.
func NewConfigurator(policy Policy, logger *log.Logger) *Configurator {
	return &Configurator{policy: policy, log: logger}
}

// Enabled reports whether the override is requested at all.
func (c *Configurator) Enabled() bool {
	return c != nil && c.policy.DisableInterlocks
}

// Check returns ErrHardwareNotConfirmed when target needs a confirmation it lacks.
func (c *Configurator) Check(target link.Target) error {
	if !c.Enabled() {
		return nil
	}
	if !target.Simulated && !c.policy.ConfirmHardware {
		return fmt.Errorf("%w: refusing to disable interlocks on %s", ErrHardwareNotConfirmed, target.Address)
	}
	return nil
}

// Apply sets every interlock parameter to 0 on v. A parameter the vehicle does
// not know is logged and skipped. Link loss and cancellation stop the pass.
func (c *Configurator) Apply(ctx context.Context, v link.Vehicle) (*Result, error) {
	res := &Result{}
	c.log.Warn("Disabling all vehicle safety interlocks")

	for _, name := range Interlocks {
		err := v.SetParameter(ctx, name, 0)
		switch {
		case err == nil:
			res.Applied = append(res.Applied, name)
		case ctx.Err() != nil:
			return res, ctx.Err()
		case errors.Is(err, link.ErrClosed), errors.Is(err, link.ErrConnectionFailure):
			return res, fmt.Errorf("safety: %s: %w", name, err)
		default:
			c.log.Warn("Could not set parameter", "param", name, "error", err)
			if res.Failed == nil {
				res.Failed = make(map[string]string)
			}
			res.Failed[name] = err.Error()
		}
	}

	c.log.Info("Safety interlocks disabled", "applied", len(res.Applied), "failed", len(res.Failed))
	return res, nil
}
