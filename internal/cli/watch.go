package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/pvl/internal/engine"
	"github.com/roach88/pvl/internal/inbox"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Database string

	// RunIDs allows overriding the run ID generator (for testing).
	RunIDs engine.RunIDGenerator
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <inbox-dir>",
		Short: "Execute steps dropped into an inbox directory",
		Long: `Start the step worker and feed it from an inbox directory.

Each *.steps file dropped into the inbox is queued as one step and moved
to done/. Steps execute one at a time in arrival order against a dry-run
session. Use 'pvl enqueue' to submit steps safely.

The worker runs until interrupted. The step being executed finishes;
steps still queued are dropped.

Example:
  pvl watch ./inbox --db ./pvl.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default from config)")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rt, err := newRuntime(opts.RootOptions, runtimeOptions{
		Database: opts.Database,
		Source:   "inbox:" + dir,
		RunIDs:   opts.RunIDs,
		Out:      formatter.GetErrWriter(),
	})
	if err != nil {
		return loadFailure(formatter, err)
	}
	defer rt.close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	watcher := inbox.New(dir, rt.worker, 0)

	fmt.Fprintf(formatter.Writer, "Worker %s started. Watching %s for step files...\n", rt.worker.RunID(), dir)
	fmt.Fprintln(formatter.Writer, "Press Ctrl-C to stop.")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.monitor.Run(gctx)
	})
	g.Go(func() error {
		err := watcher.Run(gctx)
		// The inbox is the only producer; without it the worker has
		// nothing left to do.
		rt.worker.Stop()
		cancel()
		return err
	})
	g.Go(func() error {
		return rt.worker.Run(gctx)
	})

	if err := g.Wait(); !isShutdown(err) {
		return formatter.Fail(ExitFailure, ErrCodeGeneric, "worker error", err)
	}

	slog.Info("worker stopped gracefully", "run", rt.worker.RunID())
	return nil
}
