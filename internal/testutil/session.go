package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/roach88/pvl/internal/device"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// RecordingSession is a scriptable device.Session for tests.
//
// Every call is recorded as one line in the same format as
// device.DryRun ("boot_to OS", "ac OFF", "execute[OS] ls"). Responses
// are programmed per call prefix: Fail makes matching calls return an
// error, Reply sets command results, Check sets check outcomes.
type RecordingSession struct {
	mu      sync.Mutex
	calls   []string
	power   string
	fails   []rule[error]
	replies []rule[device.Result]
	checks  []rule[bool]
	panics  []string
	menu    map[string]string
}

type rule[T any] struct {
	prefix string
	value  T
}

var (
	_ device.Session     = (*RecordingSession)(nil)
	_ device.PowerSource = (*RecordingSession)(nil)
)

// NewRecordingSession returns a session that succeeds at everything.
func NewRecordingSession() *RecordingSession {
	return &RecordingSession{power: device.PowerS0, menu: make(map[string]string)}
}

// Fail makes calls whose recorded line starts with prefix return err.
func (s *RecordingSession) Fail(prefix string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fails = append(s.fails, rule[error]{prefix, err})
}

// Panic makes calls whose recorded line starts with prefix panic.
func (s *RecordingSession) Panic(prefix string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.panics = append(s.panics, prefix)
}

// Reply sets the result of command calls starting with prefix.
func (s *RecordingSession) Reply(prefix string, res device.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, rule[device.Result]{prefix, res})
}

// Check sets the outcome of check calls starting with prefix. Checks
// default to true.
func (s *RecordingSession) Check(prefix string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = append(s.checks, rule[bool]{prefix, ok})
}

// SetPower sets the state reported by PowerState.
func (s *RecordingSession) SetPower(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power = state
}

// Calls returns a copy of the recorded calls in order.
func (s *RecordingSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls forgets recorded calls. Programmed responses are kept.
func (s *RecordingSession) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// record appends the call and returns the programmed error, panicking
// if asked to.
func (s *RecordingSession) record(format string, args ...any) (string, error) {
	call := fmt.Sprintf(format, args...)
	s.mu.Lock()
	s.calls = append(s.calls, call)
	var panicking bool
	for _, p := range s.panics {
		if strings.HasPrefix(call, p) {
			panicking = true
			break
		}
	}
	err := lookup(s.fails, call, nil)
	s.mu.Unlock()

	if panicking {
		panic("recording session: " + call)
	}
	return call, err
}

func lookup[T any](rules []rule[T], call string, def T) T {
	// Later rules override earlier ones.
	for i := len(rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(call, rules[i].prefix) {
			return rules[i].value
		}
	}
	return def
}

func (s *RecordingSession) check(format string, args ...any) (bool, error) {
	call, err := s.record(format, args...)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.checks, call, true), nil
}

func (s *RecordingSession) command(format string, args ...any) (device.Result, error) {
	call, err := s.record(format, args...)
	if err != nil {
		return device.Result{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return lookup(s.replies, call, device.Result{}), nil
}

func (s *RecordingSession) PowerState(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.power, nil
}

func (s *RecordingSession) BootTo(_ context.Context, target string) error {
	_, err := s.record("boot_to %s", target)
	return err
}

func (s *RecordingSession) ResetTo(_ context.Context, target string) error {
	_, err := s.record("reset_to %s", target)
	return err
}

func (s *RecordingSession) Reset(_ context.Context, method string) error {
	_, err := s.record("reset %s", method)
	return err
}

func (s *RecordingSession) SwitchAC(_ context.Context, on bool) error {
	_, err := s.record("ac %s", onOff(on))
	return err
}

func (s *RecordingSession) SwitchDC(_ context.Context, on bool) error {
	_, err := s.record("dc %s", onOff(on))
	return err
}

func (s *RecordingSession) ClearCMOS(context.Context) error {
	_, err := s.record("clear_cmos")
	return err
}

func (s *RecordingSession) WaitFor(_ context.Context, target string, timeout time.Duration) error {
	_, err := s.record("wait_for %s timeout=%s", target, timeout)
	return err
}

func (s *RecordingSession) CheckEnvironment(_ context.Context, env sysvar.Environment) (bool, error) {
	return s.check("check_environment %s", env)
}

func (s *RecordingSession) CheckPowerState(_ context.Context, state string) (bool, error) {
	return s.check("check_power_state %s", state)
}

func (s *RecordingSession) ExecuteCommand(_ context.Context, env sysvar.Environment, cmd device.Command) (device.Result, error) {
	return s.command("execute[%s] %s", env, describe(cmd))
}

func (s *RecordingSession) ExecuteHostCommand(_ context.Context, cmd device.Command) (device.Result, error) {
	return s.command("execute[host] %s", describe(cmd))
}

func (s *RecordingSession) ExecuteITPCommand(_ context.Context, lib sysvar.ItpLib, cmd device.Command) (device.Result, error) {
	return s.command("execute[itp:%s] %s", lib, describe(cmd))
}

func (s *RecordingSession) CheckBIOSKnobs(_ context.Context, env sysvar.Environment, knobs string) (bool, error) {
	return s.check("check_bios_knobs[%s] %s", env, knobs)
}

func (s *RecordingSession) SetBIOSKnobs(_ context.Context, env sysvar.Environment, knobs string) error {
	_, err := s.record("set_bios_knobs[%s] %s", env, knobs)
	return err
}

// SetMenuKnob reports a change unless the knob already holds value.
func (s *RecordingSession) SetMenuKnob(_ context.Context, knob table.MenuKnob, value string) (bool, error) {
	if _, err := s.record("set_menu_knob %s %q", knob.ID, value); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := s.menu[knob.ID] != value
	s.menu[knob.ID] = value
	return changed, nil
}

func (s *RecordingSession) CheckMenuKnob(_ context.Context, knob table.MenuKnob, value string) (bool, error) {
	return s.check("check_menu_knob %s %q", knob.ID, value)
}

func (s *RecordingSession) Sleep(_ context.Context, d time.Duration) error {
	_, err := s.record("sleep %s", d)
	return err
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func describe(cmd device.Command) string {
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
