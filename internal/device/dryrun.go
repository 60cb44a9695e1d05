package device

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// DryRun is a Session that performs no hardware access. Every call is
// written to Out as one line and succeeds. It keeps a simulated power
// state so a Monitor has something to observe.
type DryRun struct {
	Out io.Writer
	// Sleeps are skipped unless RealSleep is set.
	RealSleep bool

	mu    sync.Mutex
	power string
	knobs map[string]string
}

var (
	_ Session     = (*DryRun)(nil)
	_ PowerSource = (*DryRun)(nil)
)

// NewDryRun returns a dry-run session writing to out.
func NewDryRun(out io.Writer) *DryRun {
	return &DryRun{Out: out, power: PowerS0, knobs: make(map[string]string)}
}

func (d *DryRun) record(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	slog.Debug("dry run", "call", msg)
	if d.Out != nil {
		fmt.Fprintln(d.Out, msg)
	}
}

func (d *DryRun) setPower(s string) {
	d.mu.Lock()
	d.power = s
	d.mu.Unlock()
}

// PowerState implements PowerSource.
func (d *DryRun) PowerState(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.power, nil
}

func (d *DryRun) BootTo(_ context.Context, target string) error {
	d.record("boot_to %s", target)
	d.setPower(PowerS0)
	return nil
}

func (d *DryRun) ResetTo(_ context.Context, target string) error {
	d.record("reset_to %s", target)
	return nil
}

func (d *DryRun) Reset(_ context.Context, method string) error {
	if method == "" {
		method = "warm"
	}
	d.record("reset %s", method)
	return nil
}

func (d *DryRun) SwitchAC(_ context.Context, on bool) error {
	d.record("ac %s", onOff(on))
	if on {
		d.setPower(PowerS0)
	} else {
		d.setPower(PowerG3)
	}
	return nil
}

func (d *DryRun) SwitchDC(_ context.Context, on bool) error {
	d.record("dc %s", onOff(on))
	if on {
		d.setPower(PowerS0)
	} else {
		d.setPower(PowerS5)
	}
	return nil
}

func (d *DryRun) ClearCMOS(context.Context) error {
	d.record("clear_cmos")
	return nil
}

func (d *DryRun) WaitFor(_ context.Context, target string, timeout time.Duration) error {
	d.record("wait_for %s timeout=%s", target, timeout)
	return nil
}

func (d *DryRun) CheckEnvironment(_ context.Context, env sysvar.Environment) (bool, error) {
	d.record("check_environment %s", env)
	return true, nil
}

func (d *DryRun) CheckPowerState(_ context.Context, state string) (bool, error) {
	d.record("check_power_state %s", state)
	return true, nil
}

func (d *DryRun) ExecuteCommand(_ context.Context, env sysvar.Environment, cmd Command) (Result, error) {
	d.record("execute[%s] %s", env, describe(cmd))
	return Result{}, nil
}

func (d *DryRun) ExecuteHostCommand(_ context.Context, cmd Command) (Result, error) {
	d.record("execute[host] %s", describe(cmd))
	return Result{}, nil
}

func (d *DryRun) ExecuteITPCommand(_ context.Context, lib sysvar.ItpLib, cmd Command) (Result, error) {
	d.record("execute[itp:%s] %s", lib, describe(cmd))
	return Result{}, nil
}

func (d *DryRun) CheckBIOSKnobs(_ context.Context, env sysvar.Environment, knobs string) (bool, error) {
	d.record("check_bios_knobs[%s] %s", env, knobs)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, pair := range strings.Split(knobs, ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(pair), "=")
		if d.knobs[name] != value {
			return false, nil
		}
	}
	return true, nil
}

func (d *DryRun) SetBIOSKnobs(_ context.Context, env sysvar.Environment, knobs string) error {
	d.record("set_bios_knobs[%s] %s", env, knobs)
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, pair := range strings.Split(knobs, ",") {
		name, value, _ := strings.Cut(strings.TrimSpace(pair), "=")
		d.knobs[name] = value
	}
	return nil
}

func (d *DryRun) SetMenuKnob(_ context.Context, knob table.MenuKnob, value string) (bool, error) {
	d.record("set_menu_knob %s %q", strings.Join(append(append([]string(nil), knob.Path...), knob.Name), " > "), value)
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := d.knobs[knob.ID] != value
	d.knobs[knob.ID] = value
	return changed, nil
}

func (d *DryRun) CheckMenuKnob(_ context.Context, knob table.MenuKnob, value string) (bool, error) {
	d.record("check_menu_knob %s %q", knob.ID, value)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.knobs[knob.ID] == value, nil
}

func (d *DryRun) Sleep(ctx context.Context, dur time.Duration) error {
	d.record("sleep %s", dur)
	if !d.RealSleep {
		return nil
	}
	return Sleep(ctx, dur)
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func describe(cmd Command) string {
	var b strings.Builder
	if cmd.NoCheck {
		b.WriteString("nocheck ")
	}
	if cmd.Timeout > 0 {
		fmt.Fprintf(&b, "timeout=%s ", cmd.Timeout)
	}
	b.WriteString(cmd.Line)
	return b.String()
}
