// Package mavlink implements link.Vehicle over MAVLink 2 using gomavlib.
//
// One node is opened per vehicle. A reader goroutine tracks HEARTBEAT,
// GLOBAL_POSITION_INT, GPS_RAW_INT and STATUSTEXT into a state snapshot and
// routes COMMAND_ACK and PARAM_VALUE to waiting callers.
package mavlink

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"

	"github.com/flight-control/fcc/internal/link"
)

// DefaultSystemID identifies this side when the target sets none (GCS convention).
const DefaultSystemID = 255

// Dialer opens MAVLink vehicles.
type Dialer struct {
	// StreamRate is the requested telemetry stream frequency in Hz.
	StreamRate int
}

// NewDialer creates a MAVLink dialer.
func NewDialer() *Dialer {
	return &Dialer{StreamRate: 4}
}

// Open creates a node for target and waits for the vehicle's first heartbeat.
func (d *Dialer) Open(ctx context.Context, target link.Target) (link.Vehicle, error) {
	endpoint, err := parseEndpoint(target.Address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", link.ErrConnectionFailure, err)
	}

	sysID := target.SystemID
	if sysID <= 0 || sysID > 255 {
		sysID = DefaultSystemID
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:              []gomavlib.EndpointConf{endpoint},
		Dialect:                common.Dialect,
		OutVersion:             gomavlib.V2,
		OutSystemID:            byte(sysID),
		StreamRequestEnable:    true,
		StreamRequestFrequency: d.StreamRate,
	})
	if err != nil {
		return nil, &link.LinkError{Code: link.ErrConnectionFailure, Original: err}
	}

	v := newVehicle(target, node)
	v.wg.Add(1)
	go v.readLoop()

	readyTimeout := target.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = 60 * time.Second
	}
	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()

	select {
	case <-v.ready:
		return v, nil
	case <-timer.C:
		v.Close()
		return nil, &link.LinkError{
			Code:     link.ErrConnectionFailure,
			Original: fmt.Errorf("no heartbeat from %s within %v", target.Address, readyTimeout),
		}
	case <-ctx.Done():
		v.Close()
		return nil, fmt.Errorf("%w: %v", link.ErrConnectionFailure, ctx.Err())
	}
}

// writer is the part of the gomavlib node used for output.
type writer interface {
	WriteMessageAll(msg message.Message) error
}

// Vehicle is a MAVLink vehicle.
type Vehicle struct {
	link.VehicleBase

	node   *gomavlib.Node
	out    writer
	ready  chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool

	mu         sync.Mutex
	state      link.State
	targetSys  uint8
	targetComp uint8
	gotReady   bool
	ackWaiters map[common.MAV_CMD][]chan link.Result
	paramWait  map[string][]chan float32
}

func newVehicle(target link.Target, node *gomavlib.Node) *Vehicle {
	v := &Vehicle{
		VehicleBase: link.VehicleBase{Target: target},
		node:        node,
		ready:       make(chan struct{}),
		done:        make(chan struct{}),
		state:       link.State{Mode: link.ModeUnknown, SystemStatus: "UNINIT"},
		ackWaiters:  make(map[common.MAV_CMD][]chan link.Result),
		paramWait:   make(map[string][]chan float32),
	}
	if node != nil {
		v.out = nodeWriter{node}
	}
	return v
}

// nodeWriter adapts WriteMessageAll regardless of whether the node reports write errors.
type nodeWriter struct {
	node *gomavlib.Node
}

func (w nodeWriter) WriteMessageAll(msg message.Message) error {
	w.node.WriteMessageAll(msg)
	return nil
}

// readLoop consumes node events until the node is closed.
func (v *Vehicle) readLoop() {
	defer v.wg.Done()

	for evt := range v.node.Events() {
		frame, ok := evt.(*gomavlib.EventFrame)
		if !ok {
			continue
		}
		v.handleMessage(frame.SystemID(), frame.ComponentID(), frame.Message())
	}
}

// handleMessage updates state from one inbound message. The first autopilot
// heartbeat binds the vehicle to its system and component; after that only
// messages from that source update state.
func (v *Vehicle) handleMessage(sysID, compID uint8, msg message.Message) {
	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		// Ground stations, gimbals, companions and other peripherals are not the autopilot
		if m.Type == common.MAV_TYPE_GCS || m.Autopilot == common.MAV_AUTOPILOT_INVALID {
			return
		}
		v.mu.Lock()
		if v.gotReady && (sysID != v.targetSys || compID != v.targetComp) {
			v.mu.Unlock()
			return
		}
		v.targetSys = sysID
		v.targetComp = compID
		v.state.Mode = link.ModeFromID(m.CustomMode)
		v.state.Armed = m.BaseMode&common.MAV_MODE_FLAG_SAFETY_ARMED != 0
		v.state.SystemStatus = systemStatus(m.SystemStatus)
		v.state.LastHeartbeat = time.Now()
		v.state.Armable = v.armable()
		first := !v.gotReady
		v.gotReady = true
		v.mu.Unlock()
		if first {
			close(v.ready)
		}

	case *common.MessageGlobalPositionInt:
		v.mu.Lock()
		if v.fromAutopilot(sysID, compID) {
			v.state.Position = link.Location{
				Lat: float64(m.Lat) / 1e7,
				Lon: float64(m.Lon) / 1e7,
				Alt: float64(m.RelativeAlt) / 1000,
			}
		}
		v.mu.Unlock()

	case *common.MessageGpsRawInt:
		v.mu.Lock()
		if v.fromAutopilot(sysID, compID) {
			v.state.GPSFix = int(m.FixType)
			v.state.Armable = v.armable()
		}
		v.mu.Unlock()

	case *common.MessageCommandAck:
		v.mu.Lock()
		if !v.fromAutopilot(sysID, compID) {
			v.mu.Unlock()
			return
		}
		waiters := v.ackWaiters[m.Command]
		delete(v.ackWaiters, m.Command)
		v.mu.Unlock()
		for _, ch := range waiters {
			ch <- link.Result(m.Result)
		}

	case *common.MessageParamValue:
		v.mu.Lock()
		if !v.fromAutopilot(sysID, compID) {
			v.mu.Unlock()
			return
		}
		waiters := v.paramWait[m.ParamId]
		delete(v.paramWait, m.ParamId)
		v.mu.Unlock()
		for _, ch := range waiters {
			ch <- m.ParamValue
		}

	case *common.MessageStatustext:
		v.Notify(link.StatusText{Severity: int(m.Severity), Text: m.Text, At: time.Now()})
	}
}

// fromAutopilot reports whether a message came from the bound autopilot.
// Must be called with mu held.
func (v *Vehicle) fromAutopilot(sysID, compID uint8) bool {
	return v.gotReady && sysID == v.targetSys && compID == v.targetComp
}

// armable must be called with mu held.
func (v *Vehicle) armable() bool {
	switch v.state.SystemStatus {
	case "UNINIT", "BOOT", "CALIBRATING":
		return false
	}
	return v.state.GPSFix > 1
}

func systemStatus(s common.MAV_STATE) string {
	switch s {
	case common.MAV_STATE_UNINIT:
		return "UNINIT"
	case common.MAV_STATE_BOOT:
		return "BOOT"
	case common.MAV_STATE_CALIBRATING:
		return "CALIBRATING"
	case common.MAV_STATE_STANDBY:
		return "STANDBY"
	case common.MAV_STATE_ACTIVE:
		return "ACTIVE"
	case common.MAV_STATE_CRITICAL:
		return "CRITICAL"
	case common.MAV_STATE_EMERGENCY:
		return "EMERGENCY"
	case common.MAV_STATE_POWEROFF:
		return "POWEROFF"
	default:
		return fmt.Sprintf("STATE_%d", int(s))
	}
}

func (v *Vehicle) isClosed() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closed
}

// State returns the latest telemetry snapshot.
func (v *Vehicle) State(ctx context.Context) (*link.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, link.ErrClosed
	}
	snap := v.state
	return &snap, nil
}

// SendCommand writes COMMAND_LONG and, when requested, waits for COMMAND_ACK.
func (v *Vehicle) SendCommand(ctx context.Context, msg link.CommandMessage) (*link.CommandAck, error) {
	if v.isClosed() {
		return nil, link.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cmd := common.MAV_CMD(msg.Opcode)
	var ackCh chan link.Result

	v.mu.Lock()
	out := &common.MessageCommandLong{
		TargetSystem:    v.targetSys,
		TargetComponent: v.targetComp,
		Command:         cmd,
		Param1:          msg.Params[0],
		Param2:          msg.Params[1],
		Param3:          msg.Params[2],
		Param4:          msg.Params[3],
		Param5:          msg.Params[4],
		Param6:          msg.Params[5],
		Param7:          msg.Params[6],
	}
	if msg.AwaitAck {
		ackCh = make(chan link.Result, 1)
		v.ackWaiters[cmd] = append(v.ackWaiters[cmd], ackCh)
	}
	v.mu.Unlock()

	if err := v.out.WriteMessageAll(out); err != nil {
		v.dropAckWaiter(cmd, ackCh)
		return nil, link.NormalizeTransportError(err)
	}
	if !msg.AwaitAck {
		return nil, nil
	}

	result, err := await(ctx, v, ackCh, func() { v.dropAckWaiter(cmd, ackCh) })
	if err != nil {
		return nil, err
	}
	ack := &link.CommandAck{Opcode: msg.Opcode, Result: result}
	return ack, link.NormalizeAck(ack)
}

// SetParameter writes PARAM_SET and waits for the PARAM_VALUE echo.
func (v *Vehicle) SetParameter(ctx context.Context, name string, value float32) error {
	if v.isClosed() {
		return link.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	ch := make(chan float32, 1)
	v.mu.Lock()
	out := &common.MessageParamSet{
		TargetSystem:    v.targetSys,
		TargetComponent: v.targetComp,
		ParamId:         name,
		ParamValue:      value,
		ParamType:       common.MAV_PARAM_TYPE_REAL32,
	}
	v.paramWait[name] = append(v.paramWait[name], ch)
	v.mu.Unlock()

	if err := v.out.WriteMessageAll(out); err != nil {
		v.dropParamWaiter(name, ch)
		return link.NormalizeTransportError(err)
	}

	echoed, err := await(ctx, v, ch, func() { v.dropParamWaiter(name, ch) })
	if err != nil {
		return fmt.Errorf("param %s: %w", name, err)
	}
	if echoed != value {
		return &link.LinkError{
			Code:     link.ErrRejected,
			Original: fmt.Errorf("param %s echoed %v, want %v", name, echoed, value),
		}
	}
	return nil
}

// await waits for a reply on ch bounded by the target command timeout.
func await[T any](ctx context.Context, v *Vehicle, ch chan T, drop func()) (T, error) {
	var zero T
	timeout := v.Target.CommandTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case r := <-ch:
		return r, nil
	case <-timer.C:
		drop()
		return zero, &link.LinkError{Code: link.ErrTimeout, Original: fmt.Errorf("no reply within %v", timeout)}
	case <-v.done:
		return zero, link.ErrClosed
	case <-ctx.Done():
		drop()
		return zero, ctx.Err()
	}
}

func (v *Vehicle) dropAckWaiter(cmd common.MAV_CMD, ch chan link.Result) {
	if ch == nil {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	waiters := v.ackWaiters[cmd]
	for i, w := range waiters {
		if w == ch {
			v.ackWaiters[cmd] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(v.ackWaiters[cmd]) == 0 {
		delete(v.ackWaiters, cmd)
	}
}

func (v *Vehicle) dropParamWaiter(name string, ch chan float32) {
	v.mu.Lock()
	defer v.mu.Unlock()
	waiters := v.paramWait[name]
	for i, w := range waiters {
		if w == ch {
			v.paramWait[name] = append(waiters[:i], waiters[i+1:]...)
			break
		}
	}
	if len(v.paramWait[name]) == 0 {
		delete(v.paramWait, name)
	}
}

// GoTo writes SET_POSITION_TARGET_GLOBAL_INT with a position-only type mask.
func (v *Vehicle) GoTo(ctx context.Context, loc link.Location) error {
	if v.isClosed() {
		return link.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	v.mu.Lock()
	out := &common.MessageSetPositionTargetGlobalInt{
		TargetSystem:    v.targetSys,
		TargetComponent: v.targetComp,
		CoordinateFrame: common.MAV_FRAME_GLOBAL_RELATIVE_ALT_INT,
		TypeMask:        positionOnlyMask,
		LatInt:          int32(math.Round(loc.Lat * 1e7)),
		LonInt:          int32(math.Round(loc.Lon * 1e7)),
		Alt:             float32(loc.Alt),
	}
	v.mu.Unlock()

	return link.NormalizeTransportError(v.out.WriteMessageAll(out))
}

// positionOnlyMask ignores velocity, acceleration and yaw fields.
const positionOnlyMask = common.POSITION_TARGET_TYPEMASK(0x0FF8)

// OnStatus registers a STATUSTEXT listener.
func (v *Vehicle) OnStatus(fn func(link.StatusText)) {
	v.AddListener(fn)
}

// Close closes the node and waits for the reader goroutine.
func (v *Vehicle) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return link.ErrClosed
	}
	v.closed = true
	close(v.done)
	v.mu.Unlock()

	if v.node != nil {
		v.node.Close()
	}
	v.wg.Wait()
	return nil
}
