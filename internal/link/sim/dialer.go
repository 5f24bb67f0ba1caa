package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/flight-control/fcc/internal/link"
)

// Dialer opens simulated vehicles and records every open.
type Dialer struct {
	Options Options

	// OpenFunc, when set, replaces the default open. Used to inject connect failures.
	OpenFunc func(ctx context.Context, target link.Target) (link.Vehicle, error)

	mu       sync.Mutex
	vehicles []*Vehicle
	attempts int
}

// NewDialer creates a dialer for simulated vehicles.
func NewDialer(opts Options) *Dialer {
	return &Dialer{Options: opts}
}

// Open starts a new simulated vehicle.
func (d *Dialer) Open(ctx context.Context, target link.Target) (link.Vehicle, error) {
	d.mu.Lock()
	d.attempts++
	d.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", link.ErrConnectionFailure, ctx.Err())
	default:
	}

	if d.OpenFunc != nil {
		return d.OpenFunc(ctx, target)
	}

	v := New(target, d.Options)
	d.mu.Lock()
	d.vehicles = append(d.vehicles, v)
	d.mu.Unlock()
	return v, nil
}

// Attempts returns the number of Open calls.
func (d *Dialer) Attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attempts
}

// Vehicles returns every vehicle opened so far.
func (d *Dialer) Vehicles() []*Vehicle {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Vehicle(nil), d.vehicles...)
}

// Last returns the most recently opened vehicle, nil if none.
func (d *Dialer) Last() *Vehicle {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.vehicles) == 0 {
		return nil
	}
	return d.vehicles[len(d.vehicles)-1]
}
