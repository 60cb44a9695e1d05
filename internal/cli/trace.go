package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - latest run when empty
	Match    string // optional - fuzzy filter on step text
	Failed   bool   // only failed steps
	List     bool   // list runs instead of tracing one
}

// TraceEvent represents a single step in the trace timeline.
type TraceEvent struct {
	Seq       int64     `json:"seq"`
	Step      string    `json:"step"`
	Source    string    `json:"source,omitempty"`
	StartedAt time.Time `json:"started_at"`
	ElapsedMS int64     `json:"elapsed_ms"`
	Error     string    `json:"error,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID       string            `json:"run_id"`
	Source      string            `json:"source"`
	ToolVersion string            `json:"tool_version"`
	Status      string            `json:"status"`
	Vars        map[string]string `json:"vars,omitempty"`
	Timeline    []TraceEvent      `json:"timeline"`
	Stats       TraceStats        `json:"stats"`
}

// TraceStats holds summary statistics for the run.
type TraceStats struct {
	Steps       int    `json:"steps"`
	Failed      int    `json:"failed"`
	BusyMS      int64  `json:"busy_ms"`
	SlowestSeq  int64  `json:"slowest_seq,omitempty"`
	SlowestStep string `json:"slowest_step,omitempty"`
}

// RunListing is one entry of trace --list.
type RunListing struct {
	RunID     string    `json:"run_id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the execution log of a run",
		Long: `Show the recorded steps of a run from the execution log.

The output includes:
- Timeline: every executed step in order, with its elapsed time and error
- Stats: step and failure counts, busy time and the slowest step

Without --run the latest run is shown. --match keeps steps whose text
fuzzy-matches the query.

Examples:
  pvl trace --db ./pvl.db
  pvl trace --db ./pvl.db --run 0190a1b2-... --failed
  pvl trace --match "boot os"
  pvl trace --list`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run to trace (default latest)")
	cmd.Flags().StringVar(&opts.Match, "match", "", "fuzzy filter on step text")
	cmd.Flags().BoolVar(&opts.Failed, "failed", false, "show failed steps only")
	cmd.Flags().BoolVar(&opts.List, "list", false, "list recorded runs")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd)

	st, _, err := openLog(opts.RootOptions, opts.Database)
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer st.Close()

	if opts.List {
		return listRuns(ctx, formatter, st)
	}

	run, err := resolveRun(ctx, st, opts.RunID)
	if err != nil {
		return loadFailure(formatter, err)
	}
	trace, err := st.ReadTrace(ctx, run.ID)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeStore, "reading trace", err)
	}

	result := buildTraceResult(trace, opts.Match, opts.Failed)
	if formatter.IsJSON() {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}
	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// buildTraceResult converts a stored trace. Stats always cover the whole
// run; the filters only narrow the timeline.
func buildTraceResult(trace store.Trace, match string, failedOnly bool) TraceResult {
	result := TraceResult{
		RunID:       trace.Run.ID,
		Source:      trace.Run.Source,
		ToolVersion: trace.Run.ToolVersion,
		Status:      trace.Run.Status,
		Vars:        trace.Run.Vars,
		Timeline:    []TraceEvent{},
		Stats: TraceStats{
			Steps:  len(trace.Steps),
			Failed: len(trace.Failures()),
			BusyMS: trace.Busy().Milliseconds(),
		},
	}
	if slow, ok := trace.Slowest(); ok {
		result.Stats.SlowestSeq = slow.Seq
		result.Stats.SlowestStep = firstLine(slow.Step)
	}

	for _, s := range trace.Steps {
		if failedOnly && !s.Failed() {
			continue
		}
		if match != "" && !fuzzy.MatchNormalizedFold(match, s.Step) {
			continue
		}
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:       s.Seq,
			Step:      s.Step,
			Source:    s.Source,
			StartedAt: s.StartedAt,
			ElapsedMS: s.Elapsed.Milliseconds(),
			Error:     s.Error,
		})
	}
	return result
}

func listRuns(ctx context.Context, f *OutputFormatter, st *store.Store) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeStore, "listing runs", err)
	}
	listing := make([]RunListing, 0, len(runs))
	for _, r := range runs {
		listing = append(listing, RunListing{RunID: r.ID, Source: r.Source, Status: r.Status, StartedAt: r.StartedAt})
	}
	if f.IsJSON() {
		return f.Success(listing)
	}
	if len(listing) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range listing {
		fmt.Fprintf(f.Writer, "%s  %-9s  %s  %s\n", r.RunID, r.Status, r.StartedAt.Format(time.RFC3339), r.Source)
	}
	return nil
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Source: %s\n", result.Source)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	if verbose {
		fmt.Fprintf(w, "Tool: %s\n", result.ToolVersion)
		if len(result.Vars) > 0 {
			fmt.Fprintf(w, "Vars: %s\n", formatVars(result.Vars))
		}
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no steps)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Steps:   %d\n", result.Stats.Steps)
	fmt.Fprintf(w, "  Failed:  %d\n", result.Stats.Failed)
	fmt.Fprintf(w, "  Busy:    %s\n", time.Duration(result.Stats.BusyMS)*time.Millisecond)
	if result.Stats.SlowestSeq > 0 {
		fmt.Fprintf(w, "  Slowest: [%d] %s\n", result.Stats.SlowestSeq, result.Stats.SlowestStep)
	}
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	mark := "✓"
	if event.Error != "" {
		mark = "✗"
	}
	fmt.Fprintf(w, "  [%d] %s %s (%s)\n", event.Seq, mark, firstLine(event.Step),
		time.Duration(event.ElapsedMS)*time.Millisecond)
	if event.Error != "" {
		fmt.Fprintf(w, "       Error: %s\n", event.Error)
	}
	if verbose {
		fmt.Fprintf(w, "       Source: %s\n", event.Source)
		fmt.Fprintf(w, "       Started: %s\n", event.StartedAt.Format(time.RFC3339Nano))
	}
}

// firstLine shortens a multi-line step (a Repeat block) to its first
// line.
func firstLine(step string) string {
	first, _, more := strings.Cut(step, "\n")
	if more {
		return first + " ..."
	}
	return first
}

// formatVars formats variables with sorted keys for deterministic output.
func formatVars(vars map[string]string) string {
	keys := make([]string, 0, len(vars))
	for k := range vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + vars[k]
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
