// Package device defines the device-under-test session the step executor
// drives. Every call is opaque: power control, debug access and BIOS
// flashing live behind the implementation.
package device

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// Power states reported by PowerState and accepted by CheckPowerState.
const (
	PowerS0 = "S0"
	PowerS5 = "S5"
	PowerG3 = "G3"
)

// Command is an unpacked command line.
type Command struct {
	Line    string
	Timeout time.Duration // zero means the session default
	NoCheck bool          // do not require a zero exit code
}

// Result is the outcome of a command.
type Result struct {
	ExitCode int
	Output   string
}

// Session is the device-under-test. Implementations need not be safe for
// concurrent use: the executor calls them from one goroutine only.
type Session interface {
	BootTo(ctx context.Context, target string) error
	ResetTo(ctx context.Context, target string) error
	Reset(ctx context.Context, method string) error

	SwitchAC(ctx context.Context, on bool) error
	SwitchDC(ctx context.Context, on bool) error
	ClearCMOS(ctx context.Context) error

	WaitFor(ctx context.Context, target string, timeout time.Duration) error
	CheckEnvironment(ctx context.Context, env sysvar.Environment) (bool, error)
	CheckPowerState(ctx context.Context, state string) (bool, error)

	ExecuteCommand(ctx context.Context, env sysvar.Environment, cmd Command) (Result, error)
	ExecuteHostCommand(ctx context.Context, cmd Command) (Result, error)
	ExecuteITPCommand(ctx context.Context, lib sysvar.ItpLib, cmd Command) (Result, error)

	// CLI knob path. knobs is "name=value, name=value".
	CheckBIOSKnobs(ctx context.Context, env sysvar.Environment, knobs string) (bool, error)
	SetBIOSKnobs(ctx context.Context, env sysvar.Environment, knobs string) error

	// BIOS setup menu knob path. SetMenuKnob reports whether the value
	// changed.
	SetMenuKnob(ctx context.Context, knob table.MenuKnob, value string) (bool, error)
	CheckMenuKnob(ctx context.Context, knob table.MenuKnob, value string) (bool, error)

	Sleep(ctx context.Context, d time.Duration) error
}

// PowerSource reports the current power state. Implementations must be
// safe to call concurrently with a Session in use.
type PowerSource interface {
	PowerState(ctx context.Context) (string, error)
}

// ExitError reports a command that returned a non-zero exit code while
// checking was requested.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("command %q exited with %d", e.Command, e.Code)
}

// ExpectationError reports a check that did not hold.
type ExpectationError struct {
	What string
}

func (e *ExpectationError) Error() string {
	return "expectation failed: " + e.What
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
