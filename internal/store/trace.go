package store

import (
	"context"
	"fmt"
	"time"
)

// Trace is a run together with its step executions in seq order.
type Trace struct {
	Run   Run
	Steps []StepExecution
}

// ReadTrace loads a run and its steps.
// Returns sql.ErrNoRows (wrapped) if the run does not exist.
func (s *Store) ReadTrace(ctx context.Context, runID string) (Trace, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return Trace{}, fmt.Errorf("read trace %s: %w", runID, err)
	}
	steps, err := s.ReadSteps(ctx, runID)
	if err != nil {
		return Trace{}, fmt.Errorf("read trace %s: %w", runID, err)
	}
	return Trace{Run: run, Steps: steps}, nil
}

// Failures returns the failed steps in seq order.
func (t Trace) Failures() []StepExecution {
	var out []StepExecution
	for _, s := range t.Steps {
		if s.Failed() {
			out = append(out, s)
		}
	}
	return out
}

// Busy returns the summed elapsed time of all steps.
func (t Trace) Busy() time.Duration {
	var d time.Duration
	for _, s := range t.Steps {
		d += s.Elapsed
	}
	return d
}

// Slowest returns the step with the longest elapsed time, and false for
// an empty trace. Ties go to the earlier step.
func (t Trace) Slowest() (StepExecution, bool) {
	if len(t.Steps) == 0 {
		return StepExecution{}, false
	}
	best := t.Steps[0]
	for _, s := range t.Steps[1:] {
		if s.Elapsed > best.Elapsed {
			best = s
		}
	}
	return best, true
}
