package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/flight-control/fcc/internal/audit"
	"github.com/flight-control/fcc/internal/command"
	"github.com/flight-control/fcc/internal/config"
	"github.com/flight-control/fcc/internal/flight"
	"github.com/flight-control/fcc/internal/link"
	"github.com/flight-control/fcc/internal/link/mavlink"
	"github.com/flight-control/fcc/internal/link/sim"
	"github.com/flight-control/fcc/internal/log"
	"github.com/flight-control/fcc/internal/safety"
)

// version is overridable at link time:
//
//	go build -ldflags "-X main.version=1.2.0"
var version = "0.1.0" //nolint:gochecknoglobals

// globalFlags are accepted by every subcommand.
type globalFlags struct {
	configPath string
	target     string
	logLevel   string
	interlocks bool
	confirmHW  bool
}

func (g *globalFlags) register(fs *flag.FlagSet) {
	fs.StringVarP(&g.configPath, "config", "c", "", "YAML configuration file (default fcc.yaml or $FCC_CONFIG)")
	fs.StringVarP(&g.target, "target", "t", "", "Vehicle link: udp:host:port, udpin:host:port, tcp:host:port, serial:dev[:baud] or sim")
	fs.StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	fs.BoolVar(&g.interlocks, "disable-interlocks", false, "Zero the failsafe and arming-check parameters on connect")
	fs.BoolVar(&g.confirmHW, "confirm-hardware", false, "Allow --disable-interlocks on a non-simulated vehicle")
}

// load reads the configuration and applies flags set on the command line.
func (g *globalFlags) load(fs *flag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("target") {
		cfg.Vehicle.Target = g.target
	}
	if fs.Changed("log-level") {
		cfg.Log.Level = g.logLevel
	}
	if fs.Changed("disable-interlocks") {
		cfg.Safety.DisableInterlocks = g.interlocks
	}
	if fs.Changed("confirm-hardware") {
		cfg.Safety.ConfirmHardware = g.confirmHW
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Execute parses args and runs the selected subcommand.
func Execute(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	if len(args) == 0 {
		printUsage(stdout)
		return nil
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "serve":
		return runServe(ctx, rest)
	case "run":
		return runPlans(ctx, rest, stdin, stdout)
	case "version", "--version":
		fmt.Fprintf(stdout, "fcc %s\n", version)
		return nil
	case "help", "-h", "--help":
		printUsage(stdout)
		return nil
	default:
		return fmt.Errorf("unknown command %q (use --help for usage)", sub)
	}
}

// core is the flight stack shared by serve and run.
type core struct {
	cfg        *config.Config
	log        *log.Logger
	audit      *audit.Logger
	dispatcher *command.Dispatcher
}

// newCore builds the dispatcher over the configured link. Callers must close it.
func newCore(cfg *config.Config, logger *log.Logger) (*core, error) {
	c := &core{cfg: cfg, log: logger}

	if cfg.Log.AuditDir != "" {
		a, err := audit.NewLogger(cfg.Log.AuditDir, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize audit logger: %w", err)
		}
		c.audit = a
		logger.Info("Audit logger initialized", "file", a.GetFilePath())
	}

	target := cfg.LinkTarget()
	c.dispatcher = command.NewDispatcher(newDialer(target), target,
		flight.NewController(cfg.Timing, logger),
		safety.NewConfigurator(safety.Policy{
			DisableInterlocks: cfg.Safety.DisableInterlocks,
			ConfirmHardware:   cfg.Safety.ConfirmHardware,
		}, logger),
		logger)
	if c.audit != nil {
		c.dispatcher.SetAuditLogger(c.audit)
	}
	return c, nil
}

// newDialer returns the simulator for the "sim" target and MAVLink otherwise.
func newDialer(target link.Target) link.Dialer {
	if target.Address == "sim" {
		return sim.NewDialer(sim.DefaultOptions())
	}
	return mavlink.NewDialer()
}

// close ends any vehicle session and flushes the audit file.
func (c *core) close() {
	c.dispatcher.Shutdown()
	if c.audit != nil {
		if err := c.audit.Close(); err != nil {
			c.log.Warn("Error closing audit logger", "error", err)
		}
	}
}

func newLogger(cfg *config.Config) *log.Logger {
	return log.New(log.Options{
		Level:      cfg.Log.Level,
		Dir:        cfg.Log.Dir,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		Console:    os.Stderr,
	})
}

// parseFlags parses a subcommand's flags. It reports errHelp when usage was printed.
func parseFlags(fs *flag.FlagSet, args []string) error {
	var showHelp bool
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if showHelp {
		fs.Usage()
		return errHelp
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

var errHelp = errors.New("help requested")

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `fcc - flight command core v%s

Usage:
  fcc serve [options]                 Run the HTTP API
  fcc run [--plan file] [options]     Execute JSON plans, one per line
  fcc version                         Print version

Run "fcc <command> --help" for the options of a command.

Examples:
  fcc run -t sim --plan mission.jsonl
  echo '[{"command":"connect"},{"command":"arm"}]' | fcc run -t udp:127.0.0.1:14550
  fcc serve -c fcc.yaml --addr :8000
`, version)
}
