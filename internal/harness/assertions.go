package harness

import (
	"fmt"
	"sort"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, event := range e.Trace {
		fmt.Fprintf(&buf, "  %s\n", event)
	}
	return buf.String()
}

// assertCallContains checks that some session call starts with the
// given prefix.
func assertCallContains(result *Result, a Assertion) error {
	for _, c := range result.Events(EventCall) {
		if strings.HasPrefix(c, a.Call) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertCallContains,
		Expected: fmt.Sprintf("call starting with %q", a.Call),
		Actual:   "not found in trace",
		Trace:    result.Trace,
	}
}

// assertCallOrder checks that calls appear in the specified order.
// Calls don't need to be consecutive (intervening calls are allowed).
func assertCallOrder(result *Result, a Assertion) error {
	calls := result.Events(EventCall)
	pos := 0
	for _, want := range a.Calls {
		found := false
		for pos < len(calls) {
			pos++
			if strings.HasPrefix(calls[pos-1], want) {
				found = true
				break
			}
		}
		if !found {
			return &AssertionError{
				Type:     AssertCallOrder,
				Expected: fmt.Sprintf("calls in order: %v", a.Calls),
				Actual:   fmt.Sprintf("no call starting with %q after position %d", want, pos),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// assertCallCount checks that exactly Count calls start with the prefix.
func assertCallCount(result *Result, a Assertion) error {
	count := 0
	for _, c := range result.Events(EventCall) {
		if strings.HasPrefix(c, a.Call) {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertCallCount,
			Expected: fmt.Sprintf("%d calls starting with %q", a.Count, a.Call),
			Actual:   fmt.Sprintf("%d calls", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertStepOutcome checks whether step a.Step failed and, for
// step_failed, that the error mentions a.Error.
func assertStepOutcome(result *Result, a Assertion) error {
	errs := result.StepEvents(a.Step, EventError)
	switch a.Type {
	case AssertStepSucceeded:
		if len(errs) == 0 {
			return nil
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d succeeds", a.Step),
			Actual:   "failed: " + errs[0],
			Trace:    result.Trace,
		}
	default:
		if len(errs) > 0 && strings.Contains(errs[0], a.Error) {
			return nil
		}
		actual := "succeeded"
		if len(errs) > 0 {
			actual = "failed: " + errs[0]
		}
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("step %d fails with %q", a.Step, a.Error),
			Actual:   actual,
			Trace:    result.Trace,
		}
	}
}

// assertOutputContains checks that some output line contains the text.
func assertOutputContains(result *Result, a Assertion) error {
	out := strings.Join(result.Events(EventOutput), "\n")
	if strings.Contains(out, a.Text) {
		return nil
	}
	return &AssertionError{
		Type:     AssertOutputContains,
		Expected: fmt.Sprintf("output containing %q", a.Text),
		Actual:   fmt.Sprintf("%q", out),
		Trace:    result.Trace,
	}
}

// assertFinalState compares the final system variables. Keys are
// checked in sorted order so the first mismatch is stable.
func assertFinalState(result *Result, a Assertion) error {
	keys := make([]string, 0, len(a.Expect))
	for k := range a.Expect {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if got := result.State[k]; got != a.Expect[k] {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s = %q", k, a.Expect[k]),
				Actual:   fmt.Sprintf("%s = %q", k, got),
				Trace:    result.Trace,
			}
		}
	}
	return nil
}

// EvaluateAssertions runs all assertions against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertCallContains:
			err = assertCallContains(result, a)
		case AssertCallOrder:
			err = assertCallOrder(result, a)
		case AssertCallCount:
			err = assertCallCount(result, a)
		case AssertStepFailed, AssertStepSucceeded:
			err = assertStepOutcome(result, a)
		case AssertOutputContains:
			err = assertOutputContains(result, a)
		case AssertFinalState:
			err = assertFinalState(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}
