package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/store"
)

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	// WorkerIdle: waiting for steps.
	WorkerIdle WorkerState = iota
	// WorkerDraining: executing queued steps.
	WorkerDraining
	// WorkerStopped: Run has returned; no further steps are accepted.
	WorkerStopped
)

func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerDraining:
		return "draining"
	case WorkerStopped:
		return "stopped"
	}
	return fmt.Sprintf("WorkerState(%d)", int32(s))
}

// StepRunner executes one queued step. *Executor implements it.
type StepRunner interface {
	Execute(ctx context.Context, text string) error
}

// Recorder persists the execution log. *store.Store implements it.
type Recorder interface {
	BeginRun(ctx context.Context, run store.Run) error
	RecordStep(ctx context.Context, exec store.StepExecution) error
	EndRun(ctx context.Context, runID string, ended time.Time, status string) error
}

// Worker is the single consumer of the step queue.
//
// Steps execute one at a time in submission order. A failing or panicking
// step is logged with its text and the worker moves on to the next one.
//
// Thread-safety model:
//   - Enqueue(), Stop(), Close(), State(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Worker struct {
	runner StepRunner
	queue  *stepQueue
	clock  *Clock
	now    NowFunc
	rec    Recorder
	runID  string
	source string
	vars   map[string]string

	state    atomic.Int32
	stopping atomic.Bool
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithRecorder logs runs and step executions to rec.
func WithRecorder(rec Recorder) WorkerOption {
	return func(w *Worker) {
		w.rec = rec
	}
}

// WithClock sets the sequence clock, for resuming numbering.
func WithClock(c *Clock) WorkerOption {
	return func(w *Worker) {
		w.clock = c
	}
}

// WithNow sets the timestamp source.
func WithNow(now NowFunc) WorkerOption {
	return func(w *Worker) {
		w.now = now
	}
}

// WithRunID sets the run identifier from gen.
func WithRunID(gen RunIDGenerator) WorkerOption {
	return func(w *Worker) {
		w.runID = gen.Generate()
	}
}

// WithRunInfo describes the run in the execution log.
func WithRunInfo(source string, vars map[string]string) WorkerOption {
	return func(w *Worker) {
		w.source = source
		w.vars = vars
	}
}

// NewWorker creates a worker that runs steps through runner.
func NewWorker(runner StepRunner, opts ...WorkerOption) *Worker {
	w := &Worker{
		runner: runner,
		queue:  newStepQueue(),
		clock:  NewClock(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.runID == "" {
		w.runID = UUIDv7Generator{}.Generate()
	}
	return w
}

// RunID returns the identifier of this worker's run.
func (w *Worker) RunID() string {
	return w.runID
}

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(w.state.Load())
}

// Pending returns the number of queued steps not yet started.
func (w *Worker) Pending() int {
	return w.queue.Len()
}

// Enqueue submits a step for execution.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the worker has been stopped or closed.
func (w *Worker) Enqueue(text, source string) bool {
	return w.queue.Enqueue(Step{Text: text, Source: source, Enqueued: w.now()})
}

// Close stops accepting steps. Run returns once the queue is drained.
func (w *Worker) Close() {
	w.queue.Close()
}

// Stop asks Run to return after the in-flight step. Queued steps that
// have not started are dropped.
func (w *Worker) Stop() {
	w.stopping.Store(true)
	w.queue.Close()
}

// Run starts the single-consumer loop.
// Blocks until the context is cancelled, Stop is called, or Close is
// called and the queue is drained.
//
// A cancelled context ends the loop between steps. It never interrupts
// the step being executed: steps run with a context that ignores
// cancellation.
func (w *Worker) Run(ctx context.Context) error {
	slog.Info("worker starting", "run", w.runID)
	w.beginRun(ctx)

	status := store.StatusCompleted
	defer func() {
		w.state.Store(int32(WorkerStopped))
		w.endRun(ctx, status)
	}()

	for {
		if err := ctx.Err(); err != nil {
			slog.Info("worker stopping: context cancelled", "run", w.runID, "dropped", w.queue.Drop())
			w.queue.Close()
			status = store.StatusStopped
			return err
		}
		if w.stopping.Load() {
			dropped := w.queue.Drop()
			slog.Info("worker stopping: stop requested", "run", w.runID, "dropped", dropped)
			status = store.StatusStopped
			return nil
		}

		step, ok := w.queue.TryDequeue()
		if ok {
			w.state.Store(int32(WorkerDraining))
			w.process(ctx, step)
			continue
		}

		w.state.Store(int32(WorkerIdle))
		select {
		case <-ctx.Done():
			slog.Info("worker stopping: context cancelled", "run", w.runID)
			w.queue.Close()
			status = store.StatusStopped
			return ctx.Err()

		case <-w.queue.Wait():
			// The signal channel is closed with the queue, so a closed
			// and empty queue ends the loop here.
			if w.queue.Closed() && w.queue.Len() == 0 && !w.stopping.Load() {
				slog.Info("worker stopping: queue closed", "run", w.runID)
				return nil
			}
		}
	}
}

// process executes one step and records it.
// Called only from the Run goroutine.
func (w *Worker) process(ctx context.Context, step Step) {
	seq := w.clock.Next()
	started := w.now()
	slog.Info("step started", "run", w.runID, "seq", seq, "step", step.Text, "source", step.Source)

	err := w.execute(context.WithoutCancel(ctx), step)

	ended := w.now()
	elapsed := ended.Sub(started)
	exec := store.StepExecution{
		RunID:     w.runID,
		Seq:       seq,
		Step:      step.Text,
		Source:    step.Source,
		StartedAt: started,
		EndedAt:   ended,
		Elapsed:   elapsed,
	}
	if err != nil {
		exec.Error = err.Error()
		// Log and continue: one bad step never halts the session.
		slog.Error("step failed",
			"run", w.runID,
			"seq", seq,
			"step", step.Text,
			"elapsed", elapsed,
			"error", err,
		)
	} else {
		slog.Info("step finished", "run", w.runID, "seq", seq, "elapsed", elapsed)
	}

	if w.rec != nil {
		if err := w.rec.RecordStep(context.WithoutCancel(ctx), exec); err != nil {
			slog.Warn("record step failed", "run", w.runID, "seq", seq, "error", err)
		}
	}
}

// execute runs the step, converting a panic into an error.
func (w *Worker) execute(ctx context.Context, step Step) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewPanicError(step.Text, r)
		}
	}()
	return w.runner.Execute(ctx, step.Text)
}

func (w *Worker) beginRun(ctx context.Context) {
	if w.rec == nil {
		return
	}
	run := store.Run{
		ID:          w.runID,
		Source:      w.source,
		ToolVersion: ir.ToolVersion,
		Vars:        w.vars,
		StartedAt:   w.now(),
	}
	if err := w.rec.BeginRun(ctx, run); err != nil {
		slog.Warn("record run failed", "run", w.runID, "error", err)
	}
}

func (w *Worker) endRun(ctx context.Context, status string) {
	if w.rec == nil {
		return
	}
	if err := w.rec.EndRun(context.WithoutCancel(ctx), w.runID, w.now(), status); err != nil {
		slog.Warn("record run end failed", "run", w.runID, "error", err)
	}
}
