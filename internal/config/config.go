package config

import (
	"time"

	"github.com/flight-control/fcc/internal/link"
)

// Config is the complete fcc configuration.
type Config struct {
	Vehicle VehicleConfig `yaml:"vehicle"`
	Timing  TimingConfig  `yaml:"timing"`
	Safety  SafetyConfig  `yaml:"safety"`
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Log     LogConfig     `yaml:"log"`
}

// VehicleConfig describes the vehicle link target.
type VehicleConfig struct {
	// Target is "udp:host:port", "udpin:host:port", "tcp:host:port", "serial:dev:baud" or "sim".
	Target    string `yaml:"target"`
	SystemID  int    `yaml:"systemId"`
	Simulated bool   `yaml:"simulated"`
}

// TimingConfig holds every poll interval and bound used by the flight controllers.
type TimingConfig struct {
	// Link
	ConnectTimeout time.Duration `yaml:"connectTimeout"`
	AckTimeout     time.Duration `yaml:"ackTimeout"`
	ParamTimeout   time.Duration `yaml:"paramTimeout"`

	// Mode transitions
	ModePollInterval time.Duration `yaml:"modePollInterval"`
	ModeTimeout      time.Duration `yaml:"modeTimeout"`

	// Arming
	ArmReadyPoll    time.Duration `yaml:"armReadyPoll"`
	ArmReadyTimeout time.Duration `yaml:"armReadyTimeout"`
	SettleDelay     time.Duration `yaml:"settleDelay"`

	// Convergence
	TakeoffPoll    time.Duration `yaml:"takeoffPoll"`
	TakeoffTimeout time.Duration `yaml:"takeoffTimeout"`
	MovePoll       time.Duration `yaml:"movePoll"`
	MoveTimeout    time.Duration `yaml:"moveTimeout"`
	ArrivalRadius  float64       `yaml:"arrivalRadius"`

	// Telemetry
	EventBufferSize   int           `yaml:"eventBufferSize"`
	HeartbeatInterval time.Duration `yaml:"heartbeatInterval"`
}

// SafetyConfig gates the interlock override.
type SafetyConfig struct {
	DisableInterlocks bool `yaml:"disableInterlocks"`
	ConfirmHardware   bool `yaml:"confirmHardware"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// AuthConfig selects the bearer token verifier.
type AuthConfig struct {
	// Algorithm is "none", "HS256" or "RS256".
	Algorithm    string `yaml:"algorithm"`
	SecretKey    string `yaml:"secretKey"`
	PublicKeyPEM string `yaml:"publicKeyPem"`
}

// LogConfig holds logging and audit settings.
type LogConfig struct {
	Level      string `yaml:"level"`
	Dir        string `yaml:"dir"`
	AuditDir   string `yaml:"auditDir"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		Vehicle: VehicleConfig{
			Target:    "udp:127.0.0.1:14550",
			SystemID:  255,
			Simulated: true,
		},
		Timing: TimingConfig{
			ConnectTimeout: 60 * time.Second,
			AckTimeout:     5 * time.Second,
			ParamTimeout:   5 * time.Second,

			ModePollInterval: 500 * time.Millisecond,
			ModeTimeout:      5 * time.Second,

			ArmReadyPoll:    1 * time.Second,
			ArmReadyTimeout: 60 * time.Second,
			SettleDelay:     1 * time.Second,

			TakeoffPoll:    1 * time.Second,
			TakeoffTimeout: 120 * time.Second,
			MovePoll:       1 * time.Second,
			MoveTimeout:    300 * time.Second,
			ArrivalRadius:  1.0,

			EventBufferSize:   50,
			HeartbeatInterval: 15 * time.Second,
		},
		Safety: SafetyConfig{
			DisableInterlocks: false,
			ConfirmHardware:   false,
		},
		Server: ServerConfig{
			Addr:         ":8000",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		Auth: AuthConfig{
			Algorithm: "none",
		},
		Log: LogConfig{
			Level:      "info",
			Dir:        "",
			AuditDir:   "audit",
			MaxSizeMB:  10,
			MaxBackups: 5,
		},
	}
}

// LinkTarget builds the link target from the vehicle and timing sections.
func (c *Config) LinkTarget() link.Target {
	return link.Target{
		Address:        c.Vehicle.Target,
		SystemID:       c.Vehicle.SystemID,
		Simulated:      c.Vehicle.Simulated || c.Vehicle.Target == "sim",
		ReadyTimeout:   c.Timing.ConnectTimeout,
		CommandTimeout: c.Timing.AckTimeout,
	}
}
