package flight

import (
	"testing"
	"time"

	"github.com/flight-control/fcc/internal/config"
	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/link/sim"
	"github.com/flight-control/fcc/internal/log"
)

// fastTiming keeps every wait in the millisecond range.
func fastTiming() config.TimingConfig {
	t := config.Default().Timing
	t.ModePollInterval = time.Millisecond
	t.ModeTimeout = 50 * time.Millisecond
	t.ArmReadyPoll = time.Millisecond
	t.ArmReadyTimeout = 100 * time.Millisecond
	t.AckTimeout = 100 * time.Millisecond
	t.SettleDelay = 0
	t.TakeoffPoll = time.Millisecond
	t.TakeoffTimeout = 500 * time.Millisecond
	t.MovePoll = time.Millisecond
	t.MoveTimeout = time.Second
	return t
}

func newTestController() *Controller {
	return NewController(fastTiming(), log.Discard())
}

func newTestVehicle(t *testing.T, mutate func(*sim.Options)) *sim.Vehicle {
	t.Helper()
	opts := sim.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	v := sim.New(link.Target{Address: "sim", Simulated: true}, opts)
	t.Cleanup(func() { v.Close() })
	return v
}

func forceArmed(v *sim.Vehicle) {
	v.SetState(func(s *link.State) { s.Armed = true })
}
