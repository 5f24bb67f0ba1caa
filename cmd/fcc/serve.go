package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/flight-control/fcc/internal/api"
	"github.com/flight-control/fcc/internal/auth"
	"github.com/flight-control/fcc/internal/config"
	"github.com/flight-control/fcc/internal/mission"
	"github.com/flight-control/fcc/internal/telemetry"
)

func runServe(ctx context.Context, args []string) error {
	var g globalFlags
	var addr string
	fs := flag.NewFlagSet("fcc serve", flag.ContinueOnError)
	g.register(fs)
	fs.StringVar(&addr, "addr", "", "HTTP listen address (default :8000)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: fcc serve [options]")
		fs.PrintDefaults()
	}
	if err := parseFlags(fs, args); err != nil {
		if errors.Is(err, errHelp) {
			return nil
		}
		return err
	}

	cfg, err := g.load(fs)
	if err != nil {
		return err
	}
	if fs.Changed("addr") {
		cfg.Server.Addr = addr
	}

	api.Version = version
	logger := newLogger(cfg)
	defer logger.Close()
	logger.Info("Starting flight command core", "version", version, "target", cfg.Vehicle.Target)

	verifier, err := newVerifier(cfg.Auth)
	if err != nil {
		return err
	}

	c, err := newCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	hub := telemetry.NewHub(&cfg.Timing, logger)
	defer hub.Stop()
	c.dispatcher.SetPublisher(hub)
	hub.SetSnapshot(func() interface{} {
		return c.dispatcher.Session(context.Background())
	})

	runner := mission.NewRunner(c.dispatcher, logger)
	defer runner.Close()

	server := api.NewServer(cfg.Server, c.dispatcher, runner, hub, auth.NewMiddleware(verifier), logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Signal received, initiating graceful shutdown")
	case err := <-serverErr:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Warn("Error stopping HTTP server", "error", err)
	}
	logger.Info("Shutdown complete")
	return nil
}

// newVerifier returns nil when token checks are disabled.
func newVerifier(cfg config.AuthConfig) (auth.TokenVerifier, error) {
	if cfg.Algorithm == "" || cfg.Algorithm == auth.AlgorithmNone {
		return nil, nil
	}
	v, err := auth.NewVerifier(auth.VerifierConfig{
		Algorithm:    cfg.Algorithm,
		SecretKey:    cfg.SecretKey,
		PublicKeyPEM: cfg.PublicKeyPEM,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create token verifier: %w", err)
	}
	return v, nil
}
