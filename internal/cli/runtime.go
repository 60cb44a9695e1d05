package cli

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/device"
	"github.com/roach88/pvl/internal/engine"
	"github.com/roach88/pvl/internal/store"
)

// runtime is one execution session: a worker draining the step queue into
// an executor over a dry-run device session, the execution log, and a
// power monitor polling the same device.
type runtime struct {
	store   *store.Store
	device  *device.DryRun
	worker  *engine.Worker
	monitor *engine.Monitor
}

// runtimeOptions configures newRuntime.
type runtimeOptions struct {
	Database string
	Source   string
	RunIDs   engine.RunIDGenerator
	Out      io.Writer
}

// newRuntime opens the execution log and wires the worker. The caller
// must call close.
func newRuntime(opts *RootOptions, ro runtimeOptions) (*runtime, error) {
	cfg := opts.Config
	tbl, err := loadTable(cfg)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database
	if ro.Database != "" {
		dbPath = ro.Database
	}
	slog.Info("opening database", "path", dbPath)
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeStore, Message: "cannot open execution log " + dbPath, Err: err}
	}

	dev := device.NewDryRun(ro.Out)
	exec := engine.NewExecutor(dev, tbl, ro.Out,
		engine.WithBlocksDir(cfg.BlocksDir),
		engine.WithVars(cfg.Vars),
		engine.WithMaxSteps(cfg.MaxSteps),
		engine.WithCheckStage(cfg.CheckSyntax),
		engine.WithDefaultOS(cfg.DefaultOS),
	)

	runIDs := ro.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	worker := engine.NewWorker(exec,
		engine.WithRecorder(st),
		engine.WithRunID(runIDs),
		engine.WithRunInfo(ro.Source, cfg.Vars),
	)

	return &runtime{
		store:   st,
		device:  dev,
		worker:  worker,
		monitor: engine.NewMonitor(dev, cfg.MonitorInterval),
	}, nil
}

func (r *runtime) close() {
	if err := r.store.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM or when the
// command's context ends.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan) // Prevent signal handler leak
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()
	return ctx, cancel
}

// isShutdown reports whether err only says the context ended.
func isShutdown(err error) bool {
	return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// openLog opens an existing execution log. Unlike store.Open it never
// creates the file.
func openLog(opts *RootOptions, db string) (*store.Store, string, error) {
	if db == "" {
		db = opts.Config.Database
	}
	if _, err := os.Stat(db); err != nil {
		return nil, db, &LoadError{Code: ErrCodeNotFound, Message: "execution log not found: " + db, Err: err}
	}
	st, err := store.Open(db)
	if err != nil {
		return nil, db, &LoadError{Code: ErrCodeStore, Message: "cannot open execution log " + db, Err: err}
	}
	return st, db, nil
}

// resolveRun reads the run with the given ID, or the latest run when id
// is empty.
func resolveRun(ctx context.Context, st *store.Store, id string) (store.Run, error) {
	var (
		run store.Run
		err error
	)
	if id == "" {
		run, err = st.LatestRun(ctx)
	} else {
		run, err = st.ReadRun(ctx, id)
	}
	if errors.Is(err, sql.ErrNoRows) {
		if id == "" {
			return run, &LoadError{Code: ErrCodeNotFound, Message: "no runs recorded"}
		}
		return run, &LoadError{Code: ErrCodeNotFound, Message: "run not found: " + id}
	}
	if err != nil {
		return run, &LoadError{Code: ErrCodeStore, Message: "reading execution log", Err: err}
	}
	return run, nil
}
