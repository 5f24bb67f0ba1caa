// Package flight implements the flight controllers that drive a link.Vehicle:
// mode transitions, the arm sequence, takeoff and relative moves.
//
// Every wait is a bounded poll with a typed Outcome and honours context
// cancellation. Controllers hold no vehicle state; the caller passes the
// vehicle handle on every call.
package flight
