package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pvl/internal/device"
	"github.com/roach88/pvl/internal/engine"
	"github.com/roach88/pvl/internal/store"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
	"github.com/roach88/pvl/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios through the real worker and executor against a
// scripted session, with a deterministic clock and run identifier.
type Harness struct {
	store   *store.Store
	session *testutil.RecordingSession
	exec    *engine.Executor
	out     bytes.Buffer
	steps   []stepTrace
}

// stepTrace holds what one step did to the session and the output.
type stepTrace struct {
	calls  []string
	output string
}

// Run executes a test scenario against the default mapping table and
// returns the result.
func Run(scenario *Scenario) (*Result, error) {
	tbl, err := table.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load default table: %w", err)
	}
	return RunWithTable(context.Background(), scenario, tbl)
}

// RunWithTable executes a test scenario against tbl.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database and scripted session
// 2. Enqueue every step on a worker and drain it
// 3. Rebuild the trace from the recorded step executions
// 4. Evaluate assertions
func RunWithTable(ctx context.Context, scenario *Scenario, tbl *table.Table) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{store: st, session: testutil.NewRecordingSession()}
	h.program(scenario.Session)

	opts := []engine.ExecutorOption{
		engine.WithVars(scenario.Vars),
		engine.WithCheckStage(scenario.CheckStage),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	if scenario.BlocksDir != "" {
		opts = append(opts, engine.WithBlocksDir(scenario.BlocksDir))
	}
	h.exec = engine.NewExecutor(h.session, tbl, &h.out, opts...)

	runID := scenario.RunID
	if runID == "" {
		runID = "scenario-" + scenario.Name
	}
	clock := testutil.NewDeterministicClock()
	w := engine.NewWorker(h,
		engine.WithRecorder(st),
		engine.WithNow(clock.Now),
		engine.WithRunID(engine.NewFixedGenerator(runID)),
		engine.WithRunInfo("scenario:"+scenario.Name, scenario.Vars),
	)
	for i, step := range scenario.Steps {
		if !w.Enqueue(step, fmt.Sprintf("scenario:%s#%d", scenario.Name, i+1)) {
			return nil, fmt.Errorf("step %d rejected", i+1)
		}
	}
	w.Close()
	if err := w.Run(ctx); err != nil {
		return nil, fmt.Errorf("failed to run steps: %w", err)
	}

	result := NewResult()
	result.RunID = runID
	if err := h.buildTrace(ctx, runID, scenario.Steps, result); err != nil {
		return nil, err
	}
	result.State = stateMap(h.exec.State())

	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(errMsg)
	}
	return result, nil
}

// Execute implements engine.StepRunner. It records the session calls and
// output of each step, including steps that panic.
func (h *Harness) Execute(ctx context.Context, text string) error {
	calls := len(h.session.Calls())
	out := h.out.Len()
	defer func() {
		h.steps = append(h.steps, stepTrace{
			calls:  h.session.Calls()[calls:],
			output: h.out.String()[out:],
		})
	}()
	return h.exec.Execute(ctx, text)
}

func (h *Harness) program(s SessionScript) {
	if s.Power != "" {
		h.session.SetPower(s.Power)
	}
	for _, r := range s.Fail {
		h.session.Fail(r.Call, errors.New(r.Error))
	}
	for _, p := range s.Panic {
		h.session.Panic(p)
	}
	for _, r := range s.Reply {
		h.session.Reply(r.Call, device.Result{ExitCode: r.ExitCode, Output: r.Output})
	}
	for _, r := range s.Check {
		h.session.Check(r.Call, r.OK)
	}
}

// buildTrace merges the per-step capture with the execution log. Step
// errors come from the log so that recovered panics are included.
func (h *Harness) buildTrace(ctx context.Context, runID string, steps []string, result *Result) error {
	execs, err := h.store.ReadSteps(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to read step executions: %w", err)
	}
	if len(execs) != len(steps) || len(h.steps) != len(steps) {
		return fmt.Errorf("executed %d of %d steps", len(execs), len(steps))
	}

	for i, exec := range execs {
		n := i + 1
		result.AddStepTrace(n, exec.Step)
		for _, c := range h.steps[i].calls {
			result.AddEvent(n, EventCall, c)
		}
		for _, l := range strings.Split(strings.TrimSuffix(h.steps[i].output, "\n"), "\n") {
			if l != "" {
				result.AddEvent(n, EventOutput, l)
			}
		}
		if exec.Failed() {
			result.AddEvent(n, EventError, exec.Error)
		}
	}
	return nil
}

func stateMap(s *sysvar.State) map[string]string {
	return map[string]string{
		"environment": string(s.Environment),
		"itplib":      string(s.ItpLib),
		"os":          string(s.OS),
		"in_prepare":  strconv.FormatBool(s.InPrepare),
	}
}
