package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks the merged configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}

	if strings.TrimSpace(cfg.Vehicle.Target) == "" {
		return fmt.Errorf("vehicle target must be set")
	}
	if cfg.Vehicle.SystemID < 1 || cfg.Vehicle.SystemID > 255 {
		return fmt.Errorf("vehicle systemId %d is outside range [1, 255]", cfg.Vehicle.SystemID)
	}

	if err := validateTiming(&cfg.Timing); err != nil {
		return fmt.Errorf("timing validation failed: %w", err)
	}

	if cfg.Safety.ConfirmHardware && !cfg.Safety.DisableInterlocks {
		return fmt.Errorf("safety confirmHardware requires disableInterlocks")
	}

	if cfg.Server.Addr == "" {
		return fmt.Errorf("server addr must be set")
	}

	switch cfg.Auth.Algorithm {
	case "none", "":
	case "HS256":
		if cfg.Auth.SecretKey == "" {
			return fmt.Errorf("auth HS256 requires secretKey")
		}
	case "RS256":
		if cfg.Auth.PublicKeyPEM == "" {
			return fmt.Errorf("auth RS256 requires publicKeyPem")
		}
	default:
		return fmt.Errorf("unsupported auth algorithm %q", cfg.Auth.Algorithm)
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}

	return nil
}

// validateTiming enforces positive intervals and poll <= timeout pairs.
func validateTiming(t *TimingConfig) error {
	positive := []struct {
		name string
		d    time.Duration
	}{
		{"connectTimeout", t.ConnectTimeout},
		{"ackTimeout", t.AckTimeout},
		{"paramTimeout", t.ParamTimeout},
		{"modePollInterval", t.ModePollInterval},
		{"armReadyPoll", t.ArmReadyPoll},
		{"takeoffPoll", t.TakeoffPoll},
		{"movePoll", t.MovePoll},
		{"heartbeatInterval", t.HeartbeatInterval},
	}
	for _, p := range positive {
		if p.d <= 0 {
			return fmt.Errorf("%s must be positive, got %v", p.name, p.d)
		}
	}

	if t.SettleDelay < 0 {
		return fmt.Errorf("settleDelay must be non-negative, got %v", t.SettleDelay)
	}

	// A zero timeout means unbounded, otherwise it must cover at least one poll
	pairs := []struct {
		name          string
		poll, timeout time.Duration
	}{
		{"mode", t.ModePollInterval, t.ModeTimeout},
		{"armReady", t.ArmReadyPoll, t.ArmReadyTimeout},
		{"takeoff", t.TakeoffPoll, t.TakeoffTimeout},
		{"move", t.MovePoll, t.MoveTimeout},
	}
	for _, p := range pairs {
		if p.timeout < 0 {
			return fmt.Errorf("%s timeout must be non-negative, got %v", p.name, p.timeout)
		}
		if p.timeout > 0 && p.poll > p.timeout {
			return fmt.Errorf("%s poll %v exceeds timeout %v", p.name, p.poll, p.timeout)
		}
	}

	if t.ArrivalRadius <= 0 {
		return fmt.Errorf("arrivalRadius must be positive, got %v", t.ArrivalRadius)
	}
	if t.EventBufferSize <= 0 {
		return fmt.Errorf("eventBufferSize must be positive, got %d", t.EventBufferSize)
	}

	return nil
}
