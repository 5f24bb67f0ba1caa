// Package telemetry fans flight events out to Server-Sent Events and websocket
// clients.
//
// Each vehicle has a monotonic event id counter and a ring buffer of recent
// events, so an SSE client reconnecting with Last-Event-ID gets what it missed.
// A heartbeat event is sent while at least one client is connected.
package telemetry
