package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while executing steps.
//
// Runtime errors include:
//   - Bad arguments: a step's arguments cannot be interpreted
//   - Quota exceeded: Repeat expansion executed too many steps
//   - Step panic: the session panicked while executing a step
//   - Stopped: the worker no longer accepts steps
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Step is the step text that failed, if any.
	Step string

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeBadArguments indicates arguments the executor cannot use.
	ErrCodeBadArguments RuntimeErrorCode = "BAD_ARGUMENTS"

	// ErrCodeQuotaExceeded indicates a run exceeded max steps.
	ErrCodeQuotaExceeded RuntimeErrorCode = "QUOTA_EXCEEDED"

	// ErrCodePanic indicates a step panicked.
	ErrCodePanic RuntimeErrorCode = "STEP_PANIC"

	// ErrCodeStopped indicates the worker was stopped.
	ErrCodeStopped RuntimeErrorCode = "STOPPED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Step != "" {
		return fmt.Sprintf("%s: %s (step=%q)", e.Code, e.Message, e.Step)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsQuotaError returns true if the error is a quota exceeded error.
// Matches both RuntimeError with ErrCodeQuotaExceeded and StepsExceededError.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeQuotaExceeded
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// IsPanicError returns true if the error reports a recovered panic.
func IsPanicError(err error) bool {
	var re *RuntimeError
	return errors.As(err, &re) && re.Code == ErrCodePanic
}

func badArguments(step, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeBadArguments,
		Message: fmt.Sprintf(format, args...),
		Step:    step,
	}
}

// NewPanicError creates a RuntimeError for a recovered panic.
func NewPanicError(step string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodePanic,
		Message: fmt.Sprintf("panic: %v", recovered),
		Step:    step,
	}
}
