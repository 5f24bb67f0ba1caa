package link

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Opcode identifies a vehicle command. Values follow MAV_CMD.
type Opcode uint16

// Opcodes used by the flight controllers.
const (
	CmdNavTakeoff         Opcode = 22
	CmdDoSetMode          Opcode = 176
	CmdComponentArmDisarm Opcode = 400
)

func (o Opcode) String() string {
	switch o {
	case CmdNavTakeoff:
		return "NAV_TAKEOFF"
	case CmdDoSetMode:
		return "DO_SET_MODE"
	case CmdComponentArmDisarm:
		return "COMPONENT_ARM_DISARM"
	default:
		return "CMD_" + strconv.Itoa(int(o))
	}
}

// ModeFlagCustomModeEnabled is param1 of DO_SET_MODE when param2 carries a custom mode.
const ModeFlagCustomModeEnabled = 1

// Location is a global position with altitude relative to home.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
	Alt float64 `json:"alt"`
}

func (l Location) String() string {
	return fmt.Sprintf("(%.7f, %.7f, %.2fm)", l.Lat, l.Lon, l.Alt)
}

// State is a snapshot of the live telemetry fields of a vehicle.
type State struct {
	Mode          Mode      `json:"mode"`
	Armed         bool      `json:"armed"`
	Armable       bool      `json:"armable"`
	Position      Location  `json:"position"`
	SystemStatus  string    `json:"systemStatus"`
	GPSFix        int       `json:"gpsFix"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
}

// CommandMessage is a long-form command with up to seven numeric parameters.
type CommandMessage struct {
	Opcode Opcode
	Params [7]float32

	// AwaitAck blocks SendCommand until the vehicle acknowledges the command.
	AwaitAck bool
}

// CommandAck is the vehicle's answer to a CommandMessage.
type CommandAck struct {
	Opcode Opcode
	Result Result
}

// StatusText is a vehicle-originated notification (e.g. a disarm reason).
type StatusText struct {
	Severity int       `json:"severity"`
	Text     string    `json:"text"`
	At       time.Time `json:"ts"`
}

// Target describes where and how to open a link.
type Target struct {
	// Address is "udp:host:port", "udpin:host:port", "tcp:host:port",
	// "serial:/dev/ttyX:baud" or "sim".
	Address string

	// SystemID is the MAVLink system id this side uses.
	SystemID int

	// Simulated marks SITL or the in-process simulator.
	Simulated bool

	// ReadyTimeout bounds the wait for the vehicle's first heartbeat.
	ReadyTimeout time.Duration

	// CommandTimeout bounds ack and parameter confirmations.
	CommandTimeout time.Duration
}

// Scheme returns the transport prefix of the address.
func (t Target) Scheme() string {
	scheme, _, found := strings.Cut(t.Address, ":")
	if !found {
		return t.Address
	}
	return scheme
}

// Dialer opens vehicle links.
type Dialer interface {
	// Open connects to the target and blocks until the vehicle is ready or
	// ReadyTimeout expires. Failures wrap ErrConnectionFailure.
	Open(ctx context.Context, target Target) (Vehicle, error)
}

// Vehicle is an open link to one vehicle. It is the session handle.
type Vehicle interface {
	// State returns the current telemetry snapshot.
	State(ctx context.Context) (*State, error)

	// SendCommand sends a command message. When AwaitAck is set the call
	// blocks for the acknowledgement and a rejected command returns an error
	// wrapping ErrRejected.
	SendCommand(ctx context.Context, msg CommandMessage) (*CommandAck, error)

	// SetParameter writes a named vehicle parameter and waits for the echo.
	SetParameter(ctx context.Context, name string, value float32) error

	// GoTo commands a guided move towards loc.
	GoTo(ctx context.Context, loc Location) error

	// OnStatus registers a listener for vehicle status notifications.
	OnStatus(fn func(StatusText))

	// Close releases the link. Further calls return ErrClosed.
	Close() error
}

// VehicleBase provides bookkeeping shared by Vehicle implementations.
type VehicleBase struct {
	// Target the vehicle was opened with
	Target Target

	mu        sync.Mutex
	listeners []func(StatusText)
}

// AddListener records a status listener.
func (b *VehicleBase) AddListener(fn func(StatusText)) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// Notify fans a status notification out to every listener.
func (b *VehicleBase) Notify(st StatusText) {
	b.mu.Lock()
	listeners := append([]func(StatusText){}, b.listeners...)
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(st)
	}
}
