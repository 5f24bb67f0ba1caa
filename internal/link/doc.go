// Package link defines the vehicle link contract for the Flight Control Container.
//
// A link owns the connection to one flight controller, real or simulated. It carries
// command messages southbound and exposes a telemetry snapshot, parameter writes and
// vehicle status notifications northbound. Implementations live in sub-packages:
//
//   - mavlink: MAVLink 2 over UDP, TCP or serial (gomavlib)
//   - sim: in-process simulated copter used by tests and the "sim" target
//
// Every implementation must pass linktest.RunConformance.
package link
