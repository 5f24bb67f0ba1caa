// Package linktest provides implementation-agnostic conformance testing for vehicle links.
//
// Any link.Vehicle (simulator, MAVLink against SITL) must pass RunConformance.
package linktest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/flight-control/fcc/internal/link"
)

// Capabilities describes what the vehicle under test is expected to do.
type Capabilities struct {
	// Name identifies the implementation in the report.
	Name string

	// ConvergeTimeout bounds waits for mode and arm state to be reflected.
	ConvergeTimeout time.Duration

	// PollInterval between state reads while waiting.
	PollInterval time.Duration

	// Params lists parameters that can be written.
	Params []string
}

// ConformanceResult represents the result of a single conformance check.
type ConformanceResult struct {
	TestName string
	Passed   bool
	Error    string
	Duration time.Duration
	Details  map[string]interface{}
}

// ConformanceReport represents the complete conformance report.
type ConformanceReport struct {
	VehicleName   string
	TotalTests    int
	PassedTests   int
	FailedTests   int
	Results       []ConformanceResult
	OverallPassed bool
	Duration      time.Duration
}

// RunConformance runs the complete conformance suite. newVehicle must return a
// freshly opened vehicle on the ground, disarmed and not in GUIDED.
func RunConformance(t *testing.T, newVehicle func() link.Vehicle, caps Capabilities) {
	t.Helper()
	if caps.ConvergeTimeout <= 0 {
		caps.ConvergeTimeout = 2 * time.Second
	}
	if caps.PollInterval <= 0 {
		caps.PollInterval = 10 * time.Millisecond
	}
	if caps.Name == "" {
		caps.Name = "Unknown Vehicle"
	}

	start := time.Now()
	report := &ConformanceReport{
		VehicleName:   caps.Name,
		Results:       []ConformanceResult{},
		OverallPassed: true,
	}

	runStateTests(newVehicle, caps, report)
	runModeTests(newVehicle, caps, report)
	runArmTests(newVehicle, caps, report)
	runParameterTests(newVehicle, caps, report)
	runCancellationTests(newVehicle, caps, report)
	runCloseTests(newVehicle, caps, report)

	report.Duration = time.Since(start)
	printConformanceReport(t, report)

	if !report.OverallPassed {
		t.Fatalf("Vehicle conformance failed: %d/%d checks passed", report.PassedTests, report.TotalTests)
	}
}

// check runs fn as one named conformance check on a fresh vehicle.
func check(name string, newVehicle func() link.Vehicle, report *ConformanceReport, fn func(v link.Vehicle, details map[string]interface{}) error) {
	v := newVehicle()
	defer v.Close()

	result := ConformanceResult{TestName: name, Details: make(map[string]interface{})}
	start := time.Now()
	err := fn(v, result.Details)
	result.Duration = time.Since(start)

	if err != nil {
		result.Error = err.Error()
	} else {
		result.Passed = true
	}
	report.addResult(result)
}

func runStateTests(newVehicle func() link.Vehicle, caps Capabilities, report *ConformanceReport) {
	check("State_Basic", newVehicle, report, func(v link.Vehicle, details map[string]interface{}) error {
		state, err := v.State(context.Background())
		if err != nil {
			return fmt.Errorf("State failed: %v", err)
		}
		if state == nil {
			return errors.New("State returned nil state")
		}
		if state.Armed {
			return errors.New("fresh vehicle reports armed")
		}
		details["mode"] = state.Mode
		details["position"] = state.Position.String()
		return nil
	})
}

func runModeTests(newVehicle func() link.Vehicle, caps Capabilities, report *ConformanceReport) {
	check("Mode_SetGuided", newVehicle, report, func(v link.Vehicle, details map[string]interface{}) error {
		ctx := context.Background()
		id, _ := link.CustomModeID(link.ModeGuided)
		msg := link.CommandMessage{Opcode: link.CmdDoSetMode}
		msg.Params[0] = link.ModeFlagCustomModeEnabled
		msg.Params[1] = float32(id)

		if _, err := v.SendCommand(ctx, msg); err != nil {
			return fmt.Errorf("SendCommand(DO_SET_MODE) failed: %v", err)
		}
		state, err := waitState(ctx, v, caps, func(s *link.State) bool { return s.Mode == link.ModeGuided })
		if err != nil {
			return err
		}
		details["mode"] = state.Mode
		return nil
	})

	check("Mode_UnknownOpcodeRejected", newVehicle, report, func(v link.Vehicle, details map[string]interface{}) error {
		_, err := v.SendCommand(context.Background(), link.CommandMessage{Opcode: link.Opcode(31999), AwaitAck: true})
		if err == nil {
			return errors.New("unsupported opcode should have failed")
		}
		if !errors.Is(err, link.ErrUnsupported) && !errors.Is(err, link.ErrRejected) {
			return fmt.Errorf("unsupported opcode should map to UNSUPPORTED or REJECTED, got: %v", err)
		}
		details["error"] = err.Error()
		return nil
	})
}

func runArmTests(newVehicle func() link.Vehicle, caps Capabilities, report *ConformanceReport) {
	check("Arm_WithAck", newVehicle, report, func(v link.Vehicle, details map[string]interface{}) error {
		ctx := context.Background()
		if _, err := waitState(ctx, v, caps, func(s *link.State) bool { return s.Armable }); err != nil {
			return err
		}

		msg := link.CommandMessage{Opcode: link.CmdComponentArmDisarm, AwaitAck: true}
		msg.Params[0] = 1
		ack, err := v.SendCommand(ctx, msg)
		if err != nil {
			return fmt.Errorf("arm failed: %v", err)
		}
		if ack == nil || ack.Result != link.ResultAccepted {
			return fmt.Errorf("arm ack = %v, want ACCEPTED", ack)
		}
		if _, err := waitState(ctx, v, caps, func(s *link.State) bool { return s.Armed }); err != nil {
			return err
		}
		details["ack"] = ack.Result.String()
		return nil
	})
}

func runParameterTests(newVehicle func() link.Vehicle, caps Capabilities, report *ConformanceReport) {
	for _, name := range caps.Params {
		name := name
		check("SetParameter_"+name, newVehicle, report, func(v link.Vehicle, details map[string]interface{}) error {
			if err := v.SetParameter(context.Background(), name, 0); err != nil {
				return fmt.Errorf("SetParameter(%s) failed: %v", name, err)
			}
			details["value"] = 0
			return nil
		})
	}
}

func runCancellationTests(newVehicle func() link.Vehicle, caps Capabilities, report *ConformanceReport) {
	check("Cancellation_State", newVehicle, report, func(v link.Vehicle, details map[string]interface{}) error {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := v.State(ctx)
		if err == nil {
			return errors.New("State with cancelled context should have failed")
		}
		details["error"] = err.Error()
		return nil
	})
}

func runCloseTests(newVehicle func() link.Vehicle, caps Capabilities, report *ConformanceReport) {
	check("Close_ThenCommand", newVehicle, report, func(v link.Vehicle, details map[string]interface{}) error {
		if err := v.Close(); err != nil {
			return fmt.Errorf("Close failed: %v", err)
		}
		_, err := v.SendCommand(context.Background(), link.CommandMessage{Opcode: link.CmdNavTakeoff})
		if !errors.Is(err, link.ErrClosed) {
			return fmt.Errorf("SendCommand after Close = %v, want LINK_CLOSED", err)
		}
		return nil
	})
}

// waitState polls until cond holds or the converge timeout expires.
func waitState(ctx context.Context, v link.Vehicle, caps Capabilities, cond func(*link.State) bool) (*link.State, error) {
	deadline := time.Now().Add(caps.ConvergeTimeout)
	for {
		state, err := v.State(ctx)
		if err != nil {
			return nil, fmt.Errorf("State failed: %v", err)
		}
		if cond(state) {
			return state, nil
		}
		if time.Now().After(deadline) {
			return state, fmt.Errorf("state did not converge within %v (mode=%s armed=%v)", caps.ConvergeTimeout, state.Mode, state.Armed)
		}
		time.Sleep(caps.PollInterval)
	}
}

func (r *ConformanceReport) addResult(result ConformanceResult) {
	r.TotalTests++
	if result.Passed {
		r.PassedTests++
	} else {
		r.FailedTests++
		r.OverallPassed = false
	}
	r.Results = append(r.Results, result)
}

func printConformanceReport(t *testing.T, report *ConformanceReport) {
	t.Logf("%s", strings.Repeat("=", 72))
	t.Logf("VEHICLE LINK CONFORMANCE: %s", report.VehicleName)
	t.Logf("passed %d/%d in %v", report.PassedTests, report.TotalTests, report.Duration)
	t.Logf("%s", strings.Repeat("-", 72))

	for _, result := range report.Results {
		status := "PASS"
		detail := fmt.Sprint(result.Details)
		if !result.Passed {
			status = "FAIL"
			detail = result.Error
		}
		t.Logf("%-32s %-5s %-10s %s", result.TestName, status, result.Duration.Round(time.Microsecond), detail)
	}
}
