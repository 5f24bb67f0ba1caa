package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/flight-control/fcc/internal/flight"
	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/log"
	"github.com/flight-control/fcc/internal/safety"
	"github.com/flight-control/fcc/internal/telemetry"
)

// Dispatcher owns the single vehicle session and executes sequences against it.
type Dispatcher struct {
	// Held for a whole sequence so two sequences never share the link.
	mu sync.Mutex

	dialer link.Dialer
	target link.Target
	flight *flight.Controller
	safety *safety.Configurator
	log    *log.Logger

	auditLogger AuditLogger
	publisher   Publisher

	// Guards session for readers that do not hold mu.
	sessionMu sync.RWMutex
	session   *session
}

type session struct {
	vehicle  link.Vehicle
	openedAt time.Time
}

// NewDispatcher creates a disconnected dispatcher.
func NewDispatcher(dialer link.Dialer, target link.Target, controller *flight.Controller, configurator *safety.Configurator, logger *log.Logger) *Dispatcher {
	return &Dispatcher{
		dialer: dialer,
		target: target,
		flight: controller,
		safety: configurator,
		log:    logger,
	}
}

// SetAuditLogger sets the audit logger.
func (d *Dispatcher) SetAuditLogger(logger AuditLogger) {
	d.auditLogger = logger
}

// SetPublisher sets the telemetry publisher.
func (d *Dispatcher) SetPublisher(p Publisher) {
	d.publisher = p
}

// VehicleID identifies the dispatcher's vehicle in audit and telemetry.
func (d *Dispatcher) VehicleID() string {
	return d.target.Address
}

// ExecutePlan decodes a plan document and executes it.
func (d *Dispatcher) ExecutePlan(ctx context.Context, data []byte) (*Report, error) {
	entries, err := DecodePlan(data)
	if err != nil {
		return nil, err
	}
	return d.Execute(ctx, entries), nil
}

// Execute runs entries in order and reports what happened to each.
func (d *Dispatcher) Execute(ctx context.Context, entries []Entry) *Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	report := &Report{StartedAt: time.Now()}
	d.log.Info("Executing command sequence", "entries", len(entries))

	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			d.log.Error("Sequence cancelled", "step", i, "error", err)
			report.abort(len(entries)-i, fmt.Sprintf("%s: %v", ErrHandlerException, err))
			break
		}

		step, stop := d.step(ctx, i, entry)
		report.Steps = append(report.Steps, step)
		if stop {
			remaining := len(entries) - i - 1
			if step.Status == StepFailed || remaining > 0 {
				reason := step.Code
				if reason == "" {
					reason = AbortClosed
				}
				report.abort(remaining, reason)
			}
			if remaining > 0 {
				d.log.Warn("Abandoning remaining commands", "step", i, "remaining", remaining)
			}
			break
		}
	}

	report.FinishedAt = time.Now()
	if s := d.current(); s != nil {
		report.Connected = true
		if st, err := s.vehicle.State(context.Background()); err == nil {
			report.State = st
		}
	}
	d.log.Info("Command sequence finished", "steps", len(report.Steps), "aborted", report.Aborted, "connected", report.Connected)
	return report
}

func (r *Report) abort(remaining int, reason string) {
	r.Aborted = true
	r.AbortReason = reason
	r.Remaining = remaining
}

// step decodes and runs one entry. stop reports whether the sequence ends here.
func (d *Dispatcher) step(ctx context.Context, index int, entry Entry) (Step, bool) {
	start := time.Now()
	cmd, err := Parse(index, entry)
	if err != nil {
		step := Step{Index: index, Command: cmd.Name, Status: StepSkipped, Code: codeOf(err), Error: err.Error()}
		d.log.Error("Skipping command", "step", index, "command", cmd.Name, "code", step.Code, "error", err)
		d.logAudit(ctx, auditAction(cmd), step.Code, time.Since(start))
		return step, false
	}

	logger := d.log.With("step", index, "command", cmd.Name)
	logger.Info("Executing command")
	d.publish(telemetry.EventCommandStarted, map[string]interface{}{
		"index":   index,
		"command": cmd.Name,
	})

	outcome, err := d.dispatch(ctx, cmd, logger)
	step := Step{Index: index, Command: cmd.Name, Latency: time.Since(start)}
	if outcome != 0 {
		step.Outcome = outcome.String()
	}

	status, abort := classify(err)
	if status == StepFailed {
		err = escalate(cmd.Kind, err)
	}
	step.Status = status
	if err != nil {
		step.Code = codeOf(err)
		step.Error = err.Error()
	}

	switch status {
	case StepOK:
		logger.Info("Command completed", "latency", step.Latency)
	case StepWarning, StepSkipped:
		logger.Warn("Command did not complete, continuing", "code", step.Code, "error", err)
	case StepFailed:
		logger.Error("Command failed", "code", step.Code, "error", err)
		d.publish(telemetry.EventFault, map[string]interface{}{
			"index":   index,
			"command": cmd.Name,
			"code":    step.Code,
			"message": err.Error(),
		})
	}

	result := "SUCCESS"
	if step.Code != "" {
		result = step.Code
	}
	d.logAudit(ctx, cmd.Name, result, step.Latency)
	d.publish(telemetry.EventCommandCompleted, map[string]interface{}{
		"index":     index,
		"command":   cmd.Name,
		"status":    string(step.Status),
		"outcome":   step.Outcome,
		"code":      step.Code,
		"latencyMs": step.Latency.Milliseconds(),
	})

	return step, abort || cmd.Kind == KindClose
}

// dispatch routes cmd to its handler. Panics become ErrHandlerException.
func (d *Dispatcher) dispatch(ctx context.Context, cmd Command, logger *log.Logger) (outcome flight.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			outcome = flight.Failed
			err = fmt.Errorf("%w: panic in %s: %v", ErrHandlerException, cmd.Name, r)
		}
	}()

	var v link.Vehicle
	if cmd.Kind.RequiresSession() {
		s := d.current()
		if s == nil {
			logger.Warn("No active session, connect first")
			return 0, fmt.Errorf("%w: %w: %s requires a connected vehicle", ErrNoSession, flight.ErrPreconditionUnmet, cmd.Name)
		}
		v = s.vehicle
	}

	fc := d.flight.WithLogger(logger)
	switch cmd.Kind {
	case KindConnect:
		return 0, d.connect(ctx, logger)
	case KindSetMode:
		return fc.SetMode(ctx, v, cmd.Mode)
	case KindArm:
		return 0, fc.Arm(ctx, v)
	case KindTakeoff:
		return fc.Takeoff(ctx, v, cmd.Altitude)
	case KindMoveRelative:
		return fc.MoveRelative(ctx, v, cmd.Heading, cmd.Distance)
	case KindClose:
		return 0, d.close(logger)
	case KindInvalid, KindUnknown:
		return 0, fmt.Errorf("%w: %s", ErrMalformedCommand, cmd.Kind)
	default:
		return 0, fmt.Errorf("%w: unhandled kind %d", ErrHandlerException, cmd.Kind)
	}
}

// connect replaces any open session with a new one.
func (d *Dispatcher) connect(ctx context.Context, logger *log.Logger) error {
	if s := d.current(); s != nil {
		logger.Info("Closing existing session before reconnecting")
		d.endSession(logger)
	}

	if err := d.safety.Check(d.target); err != nil {
		return err
	}

	logger.Info("Connecting to vehicle", "target", d.target.Address)
	v, err := d.dialer.Open(ctx, d.target)
	if err != nil {
		return connectionFailure(ctx, err)
	}

	// Until the session is recorded, any failure or panic must release the link
	recorded := false
	defer func() {
		if recorded {
			return
		}
		if err := v.Close(); err != nil && !errors.Is(err, link.ErrClosed) {
			logger.Warn("Error closing vehicle link", "error", err)
		}
	}()

	if d.safety.Enabled() {
		if _, err := d.safety.Apply(ctx, v); err != nil {
			return connectionFailure(ctx, err)
		}
	}

	vehicleID := d.VehicleID()
	v.OnStatus(func(st link.StatusText) {
		d.log.Info("Vehicle status", "severity", st.Severity, "text", st.Text)
		d.publish(telemetry.EventStatusText, map[string]interface{}{
			"vehicle":  vehicleID,
			"severity": st.Severity,
			"text":     st.Text,
		})
	})

	d.setSession(&session{vehicle: v, openedAt: time.Now()})
	recorded = true

	if st, err := v.State(ctx); err == nil {
		logger.Info("Connected", "mode", st.Mode, "armed", st.Armed, "position", st.Position.String())
	}
	d.publish(telemetry.EventSession, map[string]interface{}{
		"connected": true,
		"target":    d.target.Address,
	})
	return nil
}

// close ends the session. Closing while disconnected is a no-op.
func (d *Dispatcher) close(logger *log.Logger) error {
	if d.current() == nil {
		logger.Warn("No active session to close")
		return nil
	}
	d.endSession(logger)
	return nil
}

func (d *Dispatcher) endSession(logger *log.Logger) {
	s := d.current()
	d.setSession(nil)
	if s == nil {
		return
	}

	if err := s.vehicle.Close(); err != nil && !errors.Is(err, link.ErrClosed) {
		logger.Warn("Error closing vehicle link", "error", err)
	}
	logger.Info("Session closed", "duration", time.Since(s.openedAt).Round(time.Millisecond))
	d.publish(telemetry.EventSession, map[string]interface{}{
		"connected": false,
		"target":    d.target.Address,
	})
}

// Session reports the current session. It does not wait for a running sequence.
func (d *Dispatcher) Session(ctx context.Context) Session {
	s := d.current()
	if s == nil {
		return Session{}
	}

	info := Session{Connected: true, Target: d.target.Address, OpenedAt: s.openedAt}
	if st, err := s.vehicle.State(ctx); err == nil {
		info.State = st
	} else {
		d.log.Debug("Could not read vehicle state", "error", err)
	}
	return info
}

// Shutdown closes any open session. It waits for a running sequence to finish.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current() != nil {
		d.log.Info("Shutting down, closing vehicle session")
		d.endSession(d.log)
	}
}

func (d *Dispatcher) current() *session {
	d.sessionMu.RLock()
	defer d.sessionMu.RUnlock()
	return d.session
}

func (d *Dispatcher) setSession(s *session) {
	d.sessionMu.Lock()
	d.session = s
	d.sessionMu.Unlock()
}

func (d *Dispatcher) logAudit(ctx context.Context, action, result string, latency time.Duration) {
	if d.auditLogger != nil {
		d.auditLogger.LogAction(ctx, action, d.VehicleID(), result, latency)
	}
}

func (d *Dispatcher) publish(eventType string, data map[string]interface{}) {
	if d.publisher == nil {
		return
	}
	data["ts"] = time.Now().UTC().Format(time.RFC3339)
	if err := d.publisher.PublishVehicle(d.VehicleID(), telemetry.Event{Type: eventType, Data: data}); err != nil {
		d.log.Debug("Telemetry publish failed", "type", eventType, "error", err)
	}
}

func auditAction(cmd Command) string {
	if cmd.Name == "" {
		return "invalid"
	}
	return cmd.Name
}
