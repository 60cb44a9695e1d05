package harness

import (
	"fmt"
	"strings"
)

// Trace event types.
const (
	EventStep   = "step"
	EventCall   = "call"
	EventOutput = "output"
	EventError  = "error"
)

// TraceEvent is one entry of a scenario trace: a step header, a session
// call made by the step, a line the step wrote, or the step's error.
type TraceEvent struct {
	Type string `json:"type"`
	Step int    `json:"step"` // 1-based, in submission order
	Text string `json:"text"`
}

// String renders the event as it appears in golden files.
func (e TraceEvent) String() string {
	if e.Type == EventStep {
		return fmt.Sprintf("step %d %s", e.Step, e.Text)
	}
	return fmt.Sprintf("  %s %s", e.Type, e.Text)
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all assertions hold.
	Pass bool `json:"pass"`

	// RunID identifies the run in the execution log.
	RunID string `json:"run_id"`

	// Trace contains step headers with their calls, output and errors,
	// in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final System Variable State.
	State map[string]string `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace starts the trace of step n.
func (r *Result) AddStepTrace(n int, text string) {
	r.Trace = append(r.Trace, TraceEvent{Type: EventStep, Step: n, Text: summarize(text)})
}

// AddEvent appends an event belonging to step n.
func (r *Result) AddEvent(n int, typ, text string) {
	r.Trace = append(r.Trace, TraceEvent{Type: typ, Step: n, Text: text})
}

// Events returns the texts of all events of the given type.
func (r *Result) Events(typ string) []string {
	var out []string
	for _, e := range r.Trace {
		if e.Type == typ {
			out = append(out, e.Text)
		}
	}
	return out
}

// StepEvents returns the texts of step n's events of the given type.
func (r *Result) StepEvents(n int, typ string) []string {
	var out []string
	for _, e := range r.Trace {
		if e.Step == n && e.Type == typ {
			out = append(out, e.Text)
		}
	}
	return out
}

// summarize folds a multi-line step onto one line.
func summarize(text string) string {
	var parts []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " / ")
}
