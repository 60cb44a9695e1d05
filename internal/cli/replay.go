package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/device"
	"github.com/roach88/pvl/internal/engine"
	"github.com/roach88/pvl/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - latest run when empty
}

// ReplayMismatch is a step whose replayed outcome differs from the
// recorded one.
type ReplayMismatch struct {
	Seq      int64  `json:"seq"`
	Step     string `json:"step"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// ReplayResult holds the replay result of one run.
type ReplayResult struct {
	RunID         string           `json:"run_id"`
	Steps         int              `json:"steps"`
	Mismatches    []ReplayMismatch `json:"mismatches,omitempty"`
	Deterministic bool             `json:"deterministic"`
}

// stepOutcome is what replay compares: the step text and its error.
type stepOutcome struct {
	Step  string
	Error string
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute a recorded run and verify determinism",
		Long: `Re-execute the steps of a recorded run against a fresh dry-run session
and compare every step's outcome with the execution log.

The run's recorded variables are used. A step that succeeded before must
succeed again, and a failing step must fail with the same error.

Exit codes:
  0 - Every step replayed with the recorded outcome
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  pvl replay --db ./pvl.db
  pvl replay --db ./pvl.db --run 0190a1b2-...
  pvl replay --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to replay (default latest)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, _, err := openLog(opts.RootOptions, opts.Database)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer st.Close()

	run, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return loadFailure(formatter, err)
	}
	recorded, err := st.ReadSteps(ctx, run.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "reading steps", err)
	}

	var out io.Writer = io.Discard
	if opts.Verbose {
		out = formatter.GetErrWriter()
	}
	replayed, err := replaySteps(ctx, opts.RootOptions, run, recorded, out)
	if err != nil {
		return loadFailure(formatter, err)
	}

	result := compareOutcomes(run.ID, recorded, replayed)
	if formatter.IsJSON() {
		return outputReplayJSON(formatter, result)
	}
	return outputReplayText(formatter, result)
}

// replaySteps executes the recorded steps in order through a worker and
// returns their outcomes. The replay is logged to an in-memory store so
// panics and quota errors are captured exactly as the worker records
// them.
func replaySteps(ctx context.Context, opts *RootOptions, run store.Run, steps []store.StepExecution, out io.Writer) ([]stepOutcome, error) {
	cfg := opts.Config
	tbl, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}
	mem, err := store.Open(":memory:")
	if err != nil {
		return nil, err
	}
	defer mem.Close()

	exec := engine.NewExecutor(device.NewDryRun(out), tbl, out,
		engine.WithBlocksDir(cfg.BlocksDir),
		engine.WithVars(run.Vars),
		engine.WithMaxSteps(cfg.MaxSteps),
		engine.WithCheckStage(cfg.CheckSyntax),
		engine.WithDefaultOS(cfg.DefaultOS),
	)
	replayID := run.ID + "-replay"
	w := engine.NewWorker(exec,
		engine.WithRecorder(mem),
		engine.WithRunID(engine.NewFixedGenerator(replayID)),
		engine.WithRunInfo(run.Source, run.Vars),
	)
	for _, s := range steps {
		w.Enqueue(s.Step, s.Source)
	}
	w.Close()
	if err := w.Run(ctx); err != nil {
		return nil, err
	}

	execs, err := mem.ReadSteps(ctx, replayID)
	if err != nil {
		return nil, err
	}
	outcomes := make([]stepOutcome, len(execs))
	for i, e := range execs {
		outcomes[i] = stepOutcome{Step: e.Step, Error: e.Error}
	}
	return outcomes, nil
}

// compareOutcomes pairs recorded and replayed steps by position.
func compareOutcomes(runID string, recorded []store.StepExecution, replayed []stepOutcome) ReplayResult {
	result := ReplayResult{RunID: runID, Steps: len(recorded)}
	for i, r := range recorded {
		want := stepOutcome{Step: r.Step, Error: r.Error}
		var got stepOutcome
		if i < len(replayed) {
			got = replayed[i]
		}
		if cmp.Equal(want, got) {
			continue
		}
		result.Mismatches = append(result.Mismatches, ReplayMismatch{
			Seq:      r.Seq,
			Step:     r.Step,
			Recorded: describeOutcome(want),
			Replayed: describeOutcome(got),
		})
	}
	result.Deterministic = len(result.Mismatches) == 0
	return result
}

func describeOutcome(o stepOutcome) string {
	if o.Error == "" {
		return "ok"
	}
	return "error: " + o.Error
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(f *OutputFormatter, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
		RunID:  result.RunID,
	}

	if !result.Deterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	if err := f.JSON(response); err != nil {
		return err
	}

	if !result.Deterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(f *OutputFormatter, result ReplayResult) error {
	w := f.Writer

	fmt.Fprintf(w, "Replay Summary: run %s, %d step(s)\n", result.RunID, result.Steps)
	fmt.Fprintln(w)

	for _, m := range result.Mismatches {
		fmt.Fprintf(w, "✗ Step %d: %s\n", m.Seq, m.Step)
		fmt.Fprintf(w, "  Recorded: %s\n", m.Recorded)
		fmt.Fprintf(w, "  Replayed: %s\n", m.Replayed)
	}

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Run verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
