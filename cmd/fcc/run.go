package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/flight-control/fcc/internal/command"
)

// maxPlanLine bounds one plan line.
const maxPlanLine = 1 << 20

// ErrPlanAborted is returned by run when any plan was rejected or abandoned.
var ErrPlanAborted = errors.New("one or more plans aborted")

func runPlans(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	var g globalFlags
	var planPath string
	fs := flag.NewFlagSet("fcc run", flag.ContinueOnError)
	g.register(fs)
	fs.StringVarP(&planPath, "plan", "p", "", "File with one JSON plan per line (default stdin)")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: fcc run [--plan file] [options]")
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

	in := stdin
	if planPath != "" {
		f, err := os.Open(planPath)
		if err != nil {
			return fmt.Errorf("failed to open plan: %w", err)
		}
		defer f.Close()
		in = f
	}

	logger := newLogger(cfg)
	defer logger.Close()

	c, err := newCore(cfg, logger)
	if err != nil {
		return err
	}
	defer c.close()

	return executeLines(ctx, c, in, stdout)
}

// executeLines runs each non-blank line as one plan on the same session and
// writes one JSON report per plan to out.
func executeLines(ctx context.Context, c *core, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxPlanLine)
	enc := json.NewEncoder(out)

	aborted := 0
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		report, err := c.dispatcher.ExecutePlan(ctx, []byte(text))
		if err != nil {
			c.log.Error("Plan rejected", "line", line, "error", err)
			aborted++
			continue
		}
		if report.Aborted && report.AbortReason != command.AbortClosed {
			aborted++
		}
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read plans: %w", err)
	}

	if err := ctx.Err(); err != nil {
		c.log.Info("Interrupted, closing vehicle session")
		return nil
	}
	if aborted > 0 {
		return fmt.Errorf("%w: %d", ErrPlanAborted, aborted)
	}
	return nil
}
