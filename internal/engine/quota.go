package engine

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps bounds the low-level steps one queued step may execute,
// Repeat expansion included.
const DefaultMaxSteps = 100000

// QuotaEnforcer counts executed low-level steps and enforces a limit.
//
// A Repeat count is author input; the quota turns a typo such as
// "Repeat: 1000000" into an error instead of a session that never ends.
// A limit <= 0 disables the check.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check increments the step counter and validates against the limit.
func (q *QuotaEnforcer) Check(step string) error {
	q.current++
	if q.maxSteps > 0 && q.current > q.maxSteps {
		return &StepsExceededError{Step: step, Steps: q.current, Limit: q.maxSteps}
	}
	return nil
}

// Reset resets the step counter to 0.
func (q *QuotaEnforcer) Reset() {
	q.current = 0
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned when a step exceeds the max steps quota.
type StepsExceededError struct {
	Step  string // step that crossed the limit
	Steps int    // Number of steps taken
	Limit int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("step %q exceeded max steps quota: %d steps > %d limit",
		e.Step, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
