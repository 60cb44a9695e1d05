package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pvl/internal/compiler"
	"github.com/roach88/pvl/internal/engine"
	"github.com/roach88/pvl/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// RunSummary is the JSON payload of the run command.
type RunSummary struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Steps  int    `json:"steps"`
	Failed int    `json:"failed"`
	Power  string `json:"power,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <steps-file>",
		Short: "Execute a steps file against a dry-run session",
		Long: `Execute the steps of a file one at a time through the step queue.

Every line is one queued step, except Repeat blocks, which are queued
whole. High-level steps are lowered with the mapping table before they
execute. A failing step is logged and the next one runs. Every step is
recorded in the execution log for 'pvl trace' and 'pvl replay'.

The session is a dry run: device calls are printed instead of reaching
hardware. Use "-" to read steps from stdin.

Example:
  pvl run --db ./pvl.db smoke.steps
  pvl run - < smoke.steps --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSteps(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runSteps(opts *RunOptions, file string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	lines, err := readLines(file, cmd.InOrStdin())
	if err != nil {
		return loadFailure(formatter, err)
	}
	_, body := compiler.SplitPrefix(lines)
	steps := engine.SplitSteps(body)
	if len(steps) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "no steps in "+file, nil)
	}

	// Device calls would corrupt a JSON document on stdout.
	var out io.Writer = formatter.Writer
	if formatter.IsJSON() {
		out = formatter.GetErrWriter()
	}
	rt, err := newRuntime(opts.RootOptions, runtimeOptions{
		Database: opts.Database,
		Source:   file,
		RunIDs:   opts.RunIDs,
		Out:      out,
	})
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer rt.close()

	for i, s := range steps {
		rt.worker.Enqueue(s, fmt.Sprintf("%s#%d", file, i+1))
	}
	rt.worker.Close()
	formatter.VerboseLog("Queued %d step(s) from %s", len(steps), file)

	ctx, cancel := signalContext(cmd)
	defer cancel()

	monCtx, stopMonitor := context.WithCancel(ctx)
	var g errgroup.Group
	g.Go(func() error {
		return rt.monitor.Run(monCtx)
	})
	runErr := rt.worker.Run(ctx)
	stopMonitor()
	if err := g.Wait(); !isShutdown(err) {
		runErr = errors.Join(runErr, err)
	}
	if !isShutdown(runErr) {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "worker error", runErr)
	}

	trace, err := rt.store.ReadTrace(context.WithoutCancel(ctx), rt.worker.RunID())
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "reading execution log", err)
	}
	summary := RunSummary{
		RunID:  trace.Run.ID,
		Status: trace.Run.Status,
		Steps:  len(trace.Steps),
		Failed: len(trace.Failures()),
		Power:  rt.monitor.Snapshot().State,
	}

	if formatter.IsJSON() {
		if err := formatter.JSON(CLIResponse{Status: "ok", Data: summary, RunID: summary.RunID}); err != nil {
			return err
		}
	} else {
		printRunSummary(formatter, trace, summary)
	}

	switch {
	case summary.Failed > 0:
		return NewExitError(ExitFailure, fmt.Sprintf("%d step(s) failed", summary.Failed))
	case summary.Status == store.StatusStopped:
		return NewExitError(ExitFailure, "run stopped before all steps executed")
	}
	return nil
}

func printRunSummary(f *OutputFormatter, trace store.Trace, s RunSummary) {
	fmt.Fprintln(f.Writer)
	for _, e := range trace.Failures() {
		fmt.Fprintf(f.Writer, "✗ step %d (%s): %s\n", e.Seq, e.Source, e.Error)
	}
	fmt.Fprintf(f.Writer, "Run %s %s: %d step(s), %d failed\n", s.RunID, s.Status, s.Steps, s.Failed)
}
