package command

import (
	"context"
	"time"

	"github.com/flight-control/fcc/internal/audit"
	"github.com/flight-control/fcc/internal/telemetry"
)

// AuditLogger writes one audit record per executed entry.
type AuditLogger interface {
	LogAction(ctx context.Context, action string, vehicleID string, result string, latency time.Duration)
}

// Publisher receives telemetry events for the session's vehicle.
type Publisher interface {
	PublishVehicle(vehicleID string, event telemetry.Event) error
}

var (
	_ AuditLogger = (*audit.Logger)(nil)
	_ Publisher   = (*telemetry.Hub)(nil)
)
