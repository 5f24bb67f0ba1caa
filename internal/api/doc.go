// Package api serves the fcc HTTP API: health, session state, mission control
// and the telemetry streams.
//
// Every response except the event streams uses the envelope
// {result, data | code, message, details, correlationId}.
package api
