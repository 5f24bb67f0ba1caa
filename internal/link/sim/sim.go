// Package sim provides an in-process simulated copter implementing link.Vehicle.
//
// All vehicle state is owned by a single worker goroutine that drains a FIFO
// request queue. In stepped mode the same worker advances mode, altitude and
// position once per tick.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flight-control/fcc/internal/link"
)

// Behavior selects how the simulated copter converges on commanded targets.
type Behavior int

const (
	// BehaviorInstant applies mode, altitude and position changes immediately.
	BehaviorInstant Behavior = iota
	// BehaviorStepped applies them gradually, one step per tick.
	BehaviorStepped
	// BehaviorStalled acknowledges commands but never converges.
	BehaviorStalled
)

func (b Behavior) String() string {
	switch b {
	case BehaviorInstant:
		return "instant"
	case BehaviorStepped:
		return "stepped"
	case BehaviorStalled:
		return "stalled"
	default:
		return fmt.Sprintf("behavior(%d)", int(b))
	}
}

// Op names a vehicle operation for fault injection.
type Op string

const (
	OpState   Op = "state"
	OpCommand Op = "command"
	OpParam   Op = "param"
	OpGoTo    Op = "goto"
)

// Options configures a simulated vehicle.
type Options struct {
	Home     link.Location
	Mode     link.Mode
	Behavior Behavior

	// Tick is the stepped-mode update period.
	Tick time.Duration
	// ClimbRate in metres per tick.
	ClimbRate float64
	// Speed in metres per tick.
	Speed float64

	// ArmableAfter is the number of State reads before the vehicle reports armable.
	ArmableAfter int
	// RejectArm makes the vehicle deny every arm request.
	RejectArm bool
	// IgnoreArm acknowledges arm requests without arming.
	IgnoreArm bool
}

// DefaultOptions returns an instant copter on the ground at a fixed home in STABILIZE.
func DefaultOptions() Options {
	return Options{
		Home:      link.Location{Lat: 37.5665, Lon: 126.9780, Alt: 0},
		Mode:      link.ModeStabilize,
		Behavior:  BehaviorInstant,
		Tick:      20 * time.Millisecond,
		ClimbRate: 2,
		Speed:     10,
	}
}

// ParamWrite records one SetParameter call.
type ParamWrite struct {
	Name  string
	Value float32
}

type request struct {
	fn   func()
	done chan struct{}
}

// Vehicle is a simulated copter.
type Vehicle struct {
	link.VehicleBase

	opts  Options
	queue chan request
	stop  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
	closed    atomic.Bool

	// Owned by the worker
	state       link.State
	reads       int
	pendingMode link.Mode
	targetAlt   float64
	climbing    bool
	dest        *link.Location
	params      map[string]float32

	// Call recording and fault injection
	recMu    sync.Mutex
	commands []link.CommandMessage
	writes   []ParamWrite
	gotos    []link.Location
	faults   map[Op]error
}

// New starts a simulated vehicle.
func New(target link.Target, opts Options) *Vehicle {
	if opts.Mode == "" {
		opts.Mode = link.ModeStabilize
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultOptions().Tick
	}

	v := &Vehicle{
		VehicleBase: link.VehicleBase{Target: target},
		opts:        opts,
		queue:       make(chan request, 64),
		stop:        make(chan struct{}),
		params:      make(map[string]float32),
		faults:      make(map[Op]error),
		state: link.State{
			Mode:          opts.Mode,
			Position:      opts.Home,
			SystemStatus:  "STANDBY",
			GPSFix:        3,
			LastHeartbeat: time.Now(),
		},
	}

	v.wg.Add(1)
	go v.worker()
	return v
}

// worker processes requests in FIFO order and advances stepped simulation.
func (v *Vehicle) worker() {
	defer v.wg.Done()

	var tick <-chan time.Time
	if v.opts.Behavior == BehaviorStepped {
		ticker := time.NewTicker(v.opts.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case req := <-v.queue:
			req.fn()
			close(req.done)
		case <-tick:
			v.step()
		case <-v.stop:
			return
		}
	}
}

// do runs fn on the worker and waits for it.
func (v *Vehicle) do(ctx context.Context, fn func()) error {
	if v.closed.Load() {
		return link.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	req := request{fn: fn, done: make(chan struct{})}
	select {
	case v.queue <- req:
	case <-v.stop:
		return link.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-v.stop:
		return link.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *Vehicle) fault(op Op) error {
	v.recMu.Lock()
	defer v.recMu.Unlock()
	return v.faults[op]
}

// State returns the current telemetry snapshot.
func (v *Vehicle) State(ctx context.Context) (*link.State, error) {
	if err := v.fault(OpState); err != nil {
		return nil, err
	}

	var snap link.State
	err := v.do(ctx, func() {
		v.reads++
		v.state.Armable = v.reads > v.opts.ArmableAfter
		v.state.LastHeartbeat = time.Now()
		snap = v.state
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// SendCommand applies a command message to the simulated copter.
func (v *Vehicle) SendCommand(ctx context.Context, msg link.CommandMessage) (*link.CommandAck, error) {
	if v.closed.Load() {
		return nil, link.ErrClosed
	}

	v.recMu.Lock()
	v.commands = append(v.commands, msg)
	v.recMu.Unlock()

	if err := v.fault(OpCommand); err != nil {
		return nil, err
	}

	ack := &link.CommandAck{Opcode: msg.Opcode}
	err := v.do(ctx, func() {
		ack.Result = v.apply(msg)
	})
	if err != nil {
		return nil, err
	}

	if !msg.AwaitAck {
		return nil, nil
	}
	return ack, link.NormalizeAck(ack)
}

// apply runs on the worker.
func (v *Vehicle) apply(msg link.CommandMessage) link.Result {
	switch msg.Opcode {
	case link.CmdDoSetMode:
		mode := link.ModeFromID(uint32(msg.Params[1]))
		if mode == link.ModeUnknown {
			return link.ResultDenied
		}
		switch v.opts.Behavior {
		case BehaviorInstant:
			v.state.Mode = mode
		case BehaviorStepped:
			v.pendingMode = mode
		}
		return link.ResultAccepted

	case link.CmdComponentArmDisarm:
		if msg.Params[0] == 0 {
			v.state.Armed = false
			return link.ResultAccepted
		}
		if v.opts.RejectArm {
			v.notify(3, "PreArm: simulated arm rejection")
			return link.ResultDenied
		}
		if v.opts.ArmableAfter > 0 && v.reads <= v.opts.ArmableAfter {
			return link.ResultTemporarilyRejected
		}
		if !v.opts.IgnoreArm {
			v.state.Armed = true
			v.state.SystemStatus = "ACTIVE"
		}
		return link.ResultAccepted

	case link.CmdNavTakeoff:
		if !v.state.Armed {
			return link.ResultFailed
		}
		v.targetAlt = float64(msg.Params[6])
		switch v.opts.Behavior {
		case BehaviorInstant:
			v.state.Position.Alt = v.targetAlt
		case BehaviorStepped:
			v.climbing = true
		}
		return link.ResultAccepted

	default:
		return link.ResultUnsupported
	}
}

// notify emits a status text off the worker so listeners may call back into the vehicle.
func (v *Vehicle) notify(severity int, text string) {
	st := link.StatusText{Severity: severity, Text: text, At: time.Now()}
	go v.Notify(st)
}

// step runs on the worker once per tick in stepped mode.
func (v *Vehicle) step() {
	if v.pendingMode != "" {
		v.state.Mode = v.pendingMode
		v.pendingMode = ""
	}

	if v.climbing {
		remaining := v.targetAlt - v.state.Position.Alt
		if math.Abs(remaining) <= v.opts.ClimbRate {
			v.state.Position.Alt = v.targetAlt
			v.climbing = false
		} else {
			v.state.Position.Alt += math.Copysign(v.opts.ClimbRate, remaining)
		}
	}

	if v.dest != nil {
		dlat := v.dest.Lat - v.state.Position.Lat
		dlon := v.dest.Lon - v.state.Position.Lon
		remaining := math.Sqrt(dlat*dlat+dlon*dlon) * metresPerDegree
		if remaining <= v.opts.Speed {
			v.state.Position.Lat = v.dest.Lat
			v.state.Position.Lon = v.dest.Lon
			v.dest = nil
		} else {
			f := v.opts.Speed / remaining
			v.state.Position.Lat += dlat * f
			v.state.Position.Lon += dlon * f
		}
	}
}

// metresPerDegree is the planar degree-to-metre factor used for arrival checks.
const metresPerDegree = 1.113195e5

// SetParameter records and stores a parameter value.
func (v *Vehicle) SetParameter(ctx context.Context, name string, value float32) error {
	if v.closed.Load() {
		return link.ErrClosed
	}

	v.recMu.Lock()
	v.writes = append(v.writes, ParamWrite{Name: name, Value: value})
	v.recMu.Unlock()

	if err := v.fault(OpParam); err != nil {
		return err
	}

	return v.do(ctx, func() {
		v.params[name] = value
	})
}

// GoTo commands a guided move. The current altitude is kept when loc.Alt is zero.
func (v *Vehicle) GoTo(ctx context.Context, loc link.Location) error {
	if v.closed.Load() {
		return link.ErrClosed
	}

	v.recMu.Lock()
	v.gotos = append(v.gotos, loc)
	v.recMu.Unlock()

	if err := v.fault(OpGoTo); err != nil {
		return err
	}

	var rejected bool
	err := v.do(ctx, func() {
		if !v.state.Armed {
			rejected = true
			return
		}
		switch v.opts.Behavior {
		case BehaviorInstant:
			v.state.Position.Lat = loc.Lat
			v.state.Position.Lon = loc.Lon
		case BehaviorStepped:
			dest := loc
			v.dest = &dest
		}
	})
	if err != nil {
		return err
	}
	if rejected {
		return &link.LinkError{Code: link.ErrRejected, Original: fmt.Errorf("goto while disarmed")}
	}
	return nil
}

// OnStatus registers a status listener.
func (v *Vehicle) OnStatus(fn func(link.StatusText)) {
	v.AddListener(fn)
}

// Close stops the worker. It is safe to call more than once.
func (v *Vehicle) Close() error {
	if v.closed.Swap(true) {
		return link.ErrClosed
	}
	v.closeOnce.Do(func() {
		close(v.stop)
	})
	v.wg.Wait()
	return nil
}

// Helper methods for testing

// EmitStatus delivers a status text to every listener synchronously.
func (v *Vehicle) EmitStatus(severity int, text string) {
	v.Notify(link.StatusText{Severity: severity, Text: text, At: time.Now()})
}

// SetFault makes every call of op fail with err until cleared with a nil err.
func (v *Vehicle) SetFault(op Op, err error) {
	v.recMu.Lock()
	defer v.recMu.Unlock()
	if err == nil {
		delete(v.faults, op)
		return
	}
	v.faults[op] = err
}

// Commands returns the command messages sent so far.
func (v *Vehicle) Commands() []link.CommandMessage {
	v.recMu.Lock()
	defer v.recMu.Unlock()
	return append([]link.CommandMessage(nil), v.commands...)
}

// CommandsOf returns the sent command messages carrying opcode.
func (v *Vehicle) CommandsOf(opcode link.Opcode) []link.CommandMessage {
	var out []link.CommandMessage
	for _, c := range v.Commands() {
		if c.Opcode == opcode {
			out = append(out, c)
		}
	}
	return out
}

// ParamWrites returns the parameter writes made so far.
func (v *Vehicle) ParamWrites() []ParamWrite {
	v.recMu.Lock()
	defer v.recMu.Unlock()
	return append([]ParamWrite(nil), v.writes...)
}

// GoTos returns the go-to targets sent so far.
func (v *Vehicle) GoTos() []link.Location {
	v.recMu.Lock()
	defer v.recMu.Unlock()
	return append([]link.Location(nil), v.gotos...)
}

// Calls returns the number of mutating calls made (commands, params, go-to).
func (v *Vehicle) Calls() int {
	v.recMu.Lock()
	defer v.recMu.Unlock()
	return len(v.commands) + len(v.writes) + len(v.gotos)
}

// Closed reports whether Close has been called.
func (v *Vehicle) Closed() bool {
	return v.closed.Load()
}

// Snapshot returns the state without counting as a read.
func (v *Vehicle) Snapshot() link.State {
	var snap link.State
	if err := v.do(context.Background(), func() { snap = v.state }); err != nil {
		return link.State{}
	}
	return snap
}

// SetState overwrites part of the state on the worker.
func (v *Vehicle) SetState(fn func(*link.State)) {
	_ = v.do(context.Background(), func() { fn(&v.state) })
}
