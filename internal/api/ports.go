package api

import (
	"context"
	"net/http"

	"github.com/flight-control/fcc/internal/command"
	"github.com/flight-control/fcc/internal/mission"
	"github.com/flight-control/fcc/internal/telemetry"
)

// SessionPort reports the vehicle session.
type SessionPort interface {
	Session(ctx context.Context) command.Session
}

// MissionPort starts and controls background missions.
type MissionPort interface {
	Start(ctx context.Context, entries []command.Entry) (mission.Status, error)
	Cancel() error
	Status() mission.Status
}

// TelemetryPort serves event streams.
type TelemetryPort interface {
	Subscribe(ctx context.Context, w http.ResponseWriter, r *http.Request) error
	ServeWS(w http.ResponseWriter, r *http.Request) error
}

var (
	_ SessionPort   = (*command.Dispatcher)(nil)
	_ MissionPort   = (*mission.Runner)(nil)
	_ TelemetryPort = (*telemetry.Hub)(nil)
)
