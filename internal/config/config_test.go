package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Vehicle.Target != "udp:127.0.0.1:14550" {
		t.Errorf("Vehicle.Target = %q, want udp:127.0.0.1:14550", cfg.Vehicle.Target)
	}
	if cfg.Timing.ModePollInterval != 500*time.Millisecond {
		t.Errorf("ModePollInterval = %v, want 500ms", cfg.Timing.ModePollInterval)
	}
	if cfg.Timing.ModeTimeout != 5*time.Second {
		t.Errorf("ModeTimeout = %v, want 5s", cfg.Timing.ModeTimeout)
	}
	if cfg.Timing.ConnectTimeout != 60*time.Second {
		t.Errorf("ConnectTimeout = %v, want 60s", cfg.Timing.ConnectTimeout)
	}
	if cfg.Timing.ArrivalRadius != 1 {
		t.Errorf("ArrivalRadius = %v, want 1", cfg.Timing.ArrivalRadius)
	}
	if cfg.Safety.DisableInterlocks {
		t.Error("DisableInterlocks must default to false")
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate(Default()) = %v", err)
	}
}

func TestLoadFromYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcc.yaml")
	data := `
vehicle:
  target: tcp:127.0.0.1:5760
  simulated: true
timing:
  modeTimeout: 10s
  takeoffTimeout: 2m
safety:
  disableInterlocks: true
server:
  addr: ":9000"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", path, err)
	}

	if cfg.Vehicle.Target != "tcp:127.0.0.1:5760" {
		t.Errorf("Vehicle.Target = %q", cfg.Vehicle.Target)
	}
	if cfg.Timing.ModeTimeout != 10*time.Second {
		t.Errorf("ModeTimeout = %v, want 10s", cfg.Timing.ModeTimeout)
	}
	if cfg.Timing.TakeoffTimeout != 2*time.Minute {
		t.Errorf("TakeoffTimeout = %v, want 2m", cfg.Timing.TakeoffTimeout)
	}
	// Keys absent from the file keep their defaults
	if cfg.Timing.ModePollInterval != 500*time.Millisecond {
		t.Errorf("ModePollInterval = %v, want default 500ms", cfg.Timing.ModePollInterval)
	}
	if !cfg.Safety.DisableInterlocks {
		t.Error("DisableInterlocks = false, want true from file")
	}
	if cfg.Server.Addr != ":9000" {
		t.Errorf("Server.Addr = %q, want :9000", cfg.Server.Addr)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcc.yaml")
	if err := os.WriteFile(path, []byte("vehicle:\n  targt: sim\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() with misspelled key should fail")
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("Load() with missing explicit file should fail")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("FCC_VEHICLE_TARGET", "sim")
	t.Setenv("FCC_TIMING_MODE_TIMEOUT", "7s")
	t.Setenv("FCC_TIMING_ARRIVAL_RADIUS", "2.5")
	t.Setenv("FCC_TIMING_EVENT_BUFFER_SIZE", "100")
	t.Setenv("FCC_SAFETY_DISABLE_INTERLOCKS", "true")
	t.Setenv("FCC_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() with env overrides failed: %v", err)
	}

	if cfg.Vehicle.Target != "sim" {
		t.Errorf("Vehicle.Target = %q, want sim", cfg.Vehicle.Target)
	}
	if cfg.Timing.ModeTimeout != 7*time.Second {
		t.Errorf("ModeTimeout = %v, want 7s", cfg.Timing.ModeTimeout)
	}
	if cfg.Timing.ArrivalRadius != 2.5 {
		t.Errorf("ArrivalRadius = %v, want 2.5", cfg.Timing.ArrivalRadius)
	}
	if cfg.Timing.EventBufferSize != 100 {
		t.Errorf("EventBufferSize = %d, want 100", cfg.Timing.EventBufferSize)
	}
	if !cfg.Safety.DisableInterlocks {
		t.Error("DisableInterlocks = false, want true")
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if !cfg.LinkTarget().Simulated {
		t.Error("sim target should be simulated")
	}
}

func TestEnvOverridesBeatFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fcc.yaml")
	if err := os.WriteFile(path, []byte("timing:\n  moveTimeout: 100s\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("FCC_CONFIG", path)
	t.Setenv("FCC_TIMING_MOVE_TIMEOUT", "200s")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Timing.MoveTimeout != 200*time.Second {
		t.Errorf("MoveTimeout = %v, want 200s", cfg.Timing.MoveTimeout)
	}
}

func TestInvalidEnvOverride(t *testing.T) {
	tests := map[string]string{
		"FCC_TIMING_MODE_TIMEOUT":       "soon",
		"FCC_SAFETY_DISABLE_INTERLOCKS": "maybe",
		"FCC_VEHICLE_SYSTEM_ID":         "one",
		"FCC_TIMING_ARRIVAL_RADIUS":     "near",
	}
	for key, val := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := Load(""); err == nil || !strings.Contains(err.Error(), key) {
				t.Errorf("Load() = %v, want error naming %s", err, key)
			}
		})
	}
}

func TestLinkTarget(t *testing.T) {
	cfg := Default()
	cfg.Vehicle.Simulated = false
	cfg.Vehicle.Target = "serial:/dev/ttyACM0:115200"

	target := cfg.LinkTarget()
	if target.Address != "serial:/dev/ttyACM0:115200" || target.Simulated {
		t.Errorf("LinkTarget() = %+v", target)
	}
	if target.ReadyTimeout != cfg.Timing.ConnectTimeout || target.CommandTimeout != cfg.Timing.AckTimeout {
		t.Errorf("LinkTarget() timeouts = %v/%v", target.ReadyTimeout, target.CommandTimeout)
	}
}
