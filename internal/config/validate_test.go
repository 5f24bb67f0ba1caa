package config

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"nil timeout means unbounded", func(c *Config) { c.Timing.TakeoffTimeout = 0 }, false},
		{"empty target", func(c *Config) { c.Vehicle.Target = "" }, true},
		{"system id out of range", func(c *Config) { c.Vehicle.SystemID = 300 }, true},
		{"zero mode poll", func(c *Config) { c.Timing.ModePollInterval = 0 }, true},
		{"poll exceeds timeout", func(c *Config) { c.Timing.ModeTimeout = 100 * time.Millisecond }, true},
		{"negative timeout", func(c *Config) { c.Timing.MoveTimeout = -time.Second }, true},
		{"negative settle", func(c *Config) { c.Timing.SettleDelay = -time.Second }, true},
		{"zero arrival radius", func(c *Config) { c.Timing.ArrivalRadius = 0 }, true},
		{"zero event buffer", func(c *Config) { c.Timing.EventBufferSize = 0 }, true},
		{"hardware confirm without override", func(c *Config) { c.Safety.ConfirmHardware = true }, true},
		{"override with confirm", func(c *Config) {
			c.Safety.DisableInterlocks = true
			c.Safety.ConfirmHardware = true
		}, false},
		{"HS256 without key", func(c *Config) { c.Auth.Algorithm = "HS256" }, true},
		{"HS256 with key", func(c *Config) {
			c.Auth.Algorithm = "HS256"
			c.Auth.SecretKey = "secret"
		}, false},
		{"RS256 without pem", func(c *Config) { c.Auth.Algorithm = "RS256" }, true},
		{"unknown algorithm", func(c *Config) { c.Auth.Algorithm = "ES512" }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, true},
		{"empty server addr", func(c *Config) { c.Server.Addr = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}

	if err := Validate(nil); err == nil {
		t.Error("Validate(nil) should fail")
	}
}
