package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultFile is read when no path is given and FCC_CONFIG is unset.
const DefaultFile = "fcc.yaml"

// Load merges Default() + the YAML file + FCC_* env overrides, then validates.
// An explicit path that cannot be read is an error; a missing DefaultFile is not.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv("FCC_CONFIG")
	}
	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	} else if _, err := os.Stat(DefaultFile); err == nil {
		if err := loadFromFile(cfg, DefaultFile); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", DefaultFile, err)
		}
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep their value.
func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}
	return yaml.UnmarshalStrict(data, cfg)
}

// applyEnvOverrides applies FCC_* environment variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	// Vehicle
	envString("FCC_VEHICLE_TARGET", &cfg.Vehicle.Target)
	if err := envInt("FCC_VEHICLE_SYSTEM_ID", &cfg.Vehicle.SystemID); err != nil {
		return err
	}
	if err := envBool("FCC_VEHICLE_SIMULATED", &cfg.Vehicle.Simulated); err != nil {
		return err
	}

	// Timing
	durations := map[string]*time.Duration{
		"FCC_TIMING_CONNECT_TIMEOUT":    &cfg.Timing.ConnectTimeout,
		"FCC_TIMING_ACK_TIMEOUT":        &cfg.Timing.AckTimeout,
		"FCC_TIMING_PARAM_TIMEOUT":      &cfg.Timing.ParamTimeout,
		"FCC_TIMING_MODE_POLL_INTERVAL": &cfg.Timing.ModePollInterval,
		"FCC_TIMING_MODE_TIMEOUT":       &cfg.Timing.ModeTimeout,
		"FCC_TIMING_ARM_READY_POLL":     &cfg.Timing.ArmReadyPoll,
		"FCC_TIMING_ARM_READY_TIMEOUT":  &cfg.Timing.ArmReadyTimeout,
		"FCC_TIMING_SETTLE_DELAY":       &cfg.Timing.SettleDelay,
		"FCC_TIMING_TAKEOFF_POLL":       &cfg.Timing.TakeoffPoll,
		"FCC_TIMING_TAKEOFF_TIMEOUT":    &cfg.Timing.TakeoffTimeout,
		"FCC_TIMING_MOVE_POLL":          &cfg.Timing.MovePoll,
		"FCC_TIMING_MOVE_TIMEOUT":       &cfg.Timing.MoveTimeout,
		"FCC_TIMING_HEARTBEAT_INTERVAL": &cfg.Timing.HeartbeatInterval,
		"FCC_SERVER_READ_TIMEOUT":       &cfg.Server.ReadTimeout,
		"FCC_SERVER_WRITE_TIMEOUT":      &cfg.Server.WriteTimeout,
		"FCC_SERVER_IDLE_TIMEOUT":       &cfg.Server.IdleTimeout,
	}
	for key, dst := range durations {
		if err := envDuration(key, dst); err != nil {
			return err
		}
	}
	if val := os.Getenv("FCC_TIMING_ARRIVAL_RADIUS"); val != "" {
		r, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("FCC_TIMING_ARRIVAL_RADIUS: %w", err)
		}
		cfg.Timing.ArrivalRadius = r
	}
	if err := envInt("FCC_TIMING_EVENT_BUFFER_SIZE", &cfg.Timing.EventBufferSize); err != nil {
		return err
	}

	// Safety
	if err := envBool("FCC_SAFETY_DISABLE_INTERLOCKS", &cfg.Safety.DisableInterlocks); err != nil {
		return err
	}
	if err := envBool("FCC_SAFETY_CONFIRM_HARDWARE", &cfg.Safety.ConfirmHardware); err != nil {
		return err
	}

	// Server, auth, log
	envString("FCC_SERVER_ADDR", &cfg.Server.Addr)
	envString("FCC_AUTH_ALGORITHM", &cfg.Auth.Algorithm)
	envString("FCC_AUTH_SECRET_KEY", &cfg.Auth.SecretKey)
	envString("FCC_AUTH_PUBLIC_KEY_PEM", &cfg.Auth.PublicKeyPEM)
	envString("FCC_LOG_LEVEL", &cfg.Log.Level)
	envString("FCC_LOG_DIR", &cfg.Log.Dir)
	envString("FCC_LOG_AUDIT_DIR", &cfg.Log.AuditDir)

	return nil
}

func envString(key string, dst *string) {
	if val, ok := os.LookupEnv(key); ok {
		*dst = strings.TrimSpace(val)
	}
}

func envInt(key string, dst *int) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
