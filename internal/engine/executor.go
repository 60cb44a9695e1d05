package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/pvl/internal/compiler"
	"github.com/roach88/pvl/internal/device"
	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sentence"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// Default Wait for timeouts, matching the generated scripts.
const (
	DefaultEnvironmentTimeout = 60 * time.Minute
	DefaultPowerTimeout       = 10 * time.Minute
)

// Executor interprets low-level steps by calling the device session
// directly. It owns the System Variable State of its session.
//
// An Executor is not safe for concurrent use; the Worker calls it from
// its Run goroutine only.
type Executor struct {
	session device.Session
	tbl     *table.Table
	state   *sysvar.State
	out     io.Writer
	vars    map[string]string
	hlsOpts compiler.HLSOptions
	hls     *compiler.HLSTranslator // built on first high-level step
	quota   *QuotaEnforcer

	defaultOS string // boot target for bring-up; empty disables it
	broughtUp bool
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithBlocksDir sets the directory searched by Run TCD Block.
func WithBlocksDir(dir string) ExecutorOption {
	return func(e *Executor) {
		e.hlsOpts.BlocksDir = dir
	}
}

// WithVars sets the variables interpolated into command strings.
func WithVars(vars map[string]string) ExecutorOption {
	return func(e *Executor) {
		for k, v := range vars {
			e.vars[k] = v
		}
	}
}

// WithMaxSteps bounds the low-level steps one call may execute.
func WithMaxSteps(n int) ExecutorOption {
	return func(e *Executor) {
		e.quota = NewQuotaEnforcer(n)
	}
}

// WithCheckStage enforces phase policies on high-level steps.
func WithCheckStage(on bool) ExecutorOption {
	return func(e *Executor) {
		e.state.CheckStage = on
	}
}

// WithDefaultOS makes the first step that uses the device boot it to
// target when the Environment is still unset. target is "OS" or an OS
// family (Linux, Windows, ESXi), which also sets the OS variable.
func WithDefaultOS(target string) ExecutorOption {
	return func(e *Executor) {
		e.defaultOS = strings.TrimSpace(target)
	}
}

// NewExecutor returns an executor driving session. Step output and
// unrecognized lines are written to out.
func NewExecutor(session device.Session, tbl *table.Table, out io.Writer, opts ...ExecutorOption) *Executor {
	if out == nil {
		out = io.Discard
	}
	e := &Executor{
		session: session,
		tbl:     tbl,
		state:   sysvar.New(),
		out:     out,
		vars:    make(map[string]string),
		quota:   NewQuotaEnforcer(DefaultMaxSteps),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// State returns the executor's System Variable State.
func (e *Executor) State() *sysvar.State {
	return e.state
}

// SetVar sets a variable for {name} interpolation.
func (e *Executor) SetVar(name, value string) {
	e.vars[name] = value
}

// Execute runs one queued step: a single line or a block of lines.
func (e *Executor) Execute(ctx context.Context, text string) error {
	e.quota.Reset()
	return e.ExecuteBlocks(ctx, ir.SplitLines(text))
}

// ExecuteBlocks executes lines in order. A Repeat: N line opens a block
// closed by the End: at the same nesting depth; the block body is
// executed N times. High-level lines are lowered first.
func (e *Executor) ExecuteBlocks(ctx context.Context, lines []string) error {
	for i := 0; i < len(lines); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		l := ir.ParseLine(lines[i])
		switch l.Op() {
		case ir.OpRepeat:
			n, err := strconv.Atoi(l.Args)
			if err != nil || n < 1 {
				return &compiler.StructureError{Code: compiler.ErrBadRepeatCount, Line: i + 1, Message: fmt.Sprintf("invalid repeat count %q", l.Args)}
			}
			end := matchEnd(lines, i)
			if end < 0 {
				return &compiler.StructureError{Code: compiler.ErrUnmatchedRepeat, Line: i + 1, Message: "Repeat without End"}
			}
			body := lines[i+1 : end]
			for k := range n {
				slog.Debug("repeat iteration", "iteration", k+1, "of", n)
				if err := e.ExecuteBlocks(ctx, body); err != nil {
					return err
				}
			}
			i = end
		case ir.OpEnd:
			return &compiler.StructureError{Code: compiler.ErrUnmatchedEnd, Line: i + 1, Message: "End without Repeat"}
		default:
			if err := e.executeLine(ctx, l); err != nil {
				return err
			}
		}
	}
	return nil
}

// matchEnd returns the index of the End closing the Repeat at open, or -1.
func matchEnd(lines []string, open int) int {
	depth := 0
	for j := open; j < len(lines); j++ {
		switch ir.ParseLine(lines[j]).Op() {
		case ir.OpRepeat:
			depth++
		case ir.OpEnd:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

// ExecuteHighLevel lowers one high-level step and executes the result.
// Boot to and Reset to targets without a table row go straight to the
// session.
func (e *Executor) ExecuteHighLevel(ctx context.Context, line string) error {
	l := ir.ParseLine(line)
	if e.hls == nil {
		h, err := compiler.NewHLSTranslator(e.tbl, e.state, e.hlsOpts)
		if err != nil {
			return err
		}
		e.hls = h
	}
	tr, err := e.hls.TranslateStep(l)
	if err != nil {
		return err
	}
	if tr.PassThrough() {
		return e.sessionFallback(ctx, l)
	}
	return e.ExecuteBlocks(ctx, tr.Lines)
}

func (e *Executor) sessionFallback(ctx context.Context, l ir.Line) error {
	target := strings.TrimSpace(l.Args)
	switch l.Op() {
	case ir.OpBootTo:
		if err := e.session.BootTo(ctx, target); err != nil {
			return err
		}
		if env, ok := sysvar.ParseEnvironment(target); ok {
			e.state.Environment = env
		} else if e.state.Set(sysvar.VarOS, target) == nil {
			e.state.Environment = sysvar.EnvOS
		}
		return nil
	case ir.OpResetTo:
		if err := e.session.ResetTo(ctx, target); err != nil {
			return err
		}
		if err := e.state.Set(sysvar.VarEnvironment, target); err != nil {
			slog.Warn("unknown reset target", "target", target, "error", err)
		}
		return nil
	}
	slog.Warn("no rule matches, step skipped", "step", l.Text())
	e.writeLine("# " + l.Text())
	return nil
}

// ExecuteLowLevel executes a single line. Repeat and End are only valid
// inside ExecuteBlocks.
func (e *Executor) ExecuteLowLevel(ctx context.Context, line string) error {
	return e.executeLine(ctx, ir.ParseLine(line))
}

func (e *Executor) executeLine(ctx context.Context, l ir.Line) error {
	switch l.Kind {
	case ir.LineBlank:
		return nil
	case ir.LineComment, ir.LineText:
		e.writeLine(l.Text())
		return nil
	case ir.LineAssign:
		return e.assign(l)
	}

	op := l.Op()
	if op.IsHighLevel() {
		return e.ExecuteHighLevel(ctx, l.Text())
	}
	if op == ir.OpUnknown {
		slog.Warn("unknown step written to output", "step", l.Text())
		e.writeLine(l.Text())
		return nil
	}
	if err := e.quota.Check(l.Text()); err != nil {
		return err
	}
	if usesDevice(op) {
		if err := e.bringUp(ctx); err != nil {
			return err
		}
	}

	slog.Debug("executing step", "op", op.String(), "args", l.Args)
	switch op {
	case ir.OpPrepare:
		e.state.InPrepare = true
		e.writeLine(l.Text())
	case ir.OpStep:
		e.state.InPrepare = false
		e.writeLine(l.Text())
	case ir.OpRepeat, ir.OpEnd:
		return &compiler.StructureError{Code: compiler.ErrEmbeddedBlock, Message: fmt.Sprintf("%s outside a block", l.OpName)}
	case ir.OpLog:
		e.writeLine(l.Args)
	case ir.OpWait:
		secs, err := strconv.Atoi(l.Args)
		if err != nil || secs < 0 {
			return badArguments(l.Text(), "wait needs a number of seconds")
		}
		return e.session.Sleep(ctx, time.Duration(secs)*time.Second)
	case ir.OpWaitFor:
		return e.waitFor(ctx, l)
	case ir.OpReset:
		method := strings.ToLower(l.Args)
		if method == "" {
			method = "warm"
		}
		return e.session.Reset(ctx, method)
	case ir.OpSwitchAC:
		on, err := parseOnOff(l)
		if err != nil {
			return err
		}
		return e.session.SwitchAC(ctx, on)
	case ir.OpSwitchDC:
		on, err := parseOnOff(l)
		if err != nil {
			return err
		}
		return e.session.SwitchDC(ctx, on)
	case ir.OpClearCMOS:
		return e.session.ClearCMOS(ctx)
	case ir.OpCheckEnvironment:
		env, ok := sysvar.ParseEnvironment(l.Args)
		if !ok {
			return badArguments(l.Text(), "unknown environment %q", l.Args)
		}
		return expect(e.session.CheckEnvironment(ctx, env))("environment is " + string(env))
	case ir.OpCheckPowerState:
		state := strings.ToUpper(l.Args)
		return expect(e.session.CheckPowerState(ctx, state))("power state is " + state)
	case ir.OpExecuteCommand, ir.OpExecuteHostCommand, ir.OpExecuteITPCommand:
		return e.command(ctx, op, l)
	case ir.OpSetBIOSKnob:
		return e.setBIOSKnobs(ctx, sentence.SplitArgs(l.Args))
	default:
		return badArguments(l.Text(), "no executor for %s", op)
	}
	return nil
}

func (e *Executor) assign(l ir.Line) error {
	if !sysvar.IsSystemVariable(l.Name) {
		slog.Error("unknown assignment", "line", l.Text())
		e.writeLine("ERROR: unknown assignment " + l.Text())
		return nil
	}
	err := e.state.Set(l.Name, l.Value)
	if sysvar.IsInvalidValue(err) {
		slog.Warn("system variable unchanged", "name", l.Name, "value", l.Value, "error", err)
		return nil
	}
	return err
}

func (e *Executor) waitFor(ctx context.Context, l ir.Line) error {
	args := sentence.SplitArgs(l.Args)
	if len(args) == 0 || len(args) > 2 {
		return badArguments(l.Text(), "wait for needs a target and an optional timeout")
	}
	target := args[0]
	timeout := DefaultPowerTimeout
	if env, ok := sysvar.ParseEnvironment(target); ok {
		target = string(env)
		timeout = DefaultEnvironmentTimeout
	}
	if len(args) == 2 {
		secs, err := strconv.Atoi(args[1])
		if err != nil || secs < 1 {
			return badArguments(l.Text(), "invalid timeout %q", args[1])
		}
		timeout = time.Duration(secs) * time.Second
	}
	return e.session.WaitFor(ctx, target, timeout)
}

func parseOnOff(l ir.Line) (bool, error) {
	switch strings.ToUpper(l.Args) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	}
	return false, badArguments(l.Text(), "expected ON or OFF, got %q", l.Args)
}

// expect turns a check result into an error.
func expect(ok bool, err error) func(what string) error {
	return func(what string) error {
		if err != nil {
			return err
		}
		if !ok {
			return &device.ExpectationError{What: what}
		}
		return nil
	}
}

func (e *Executor) command(ctx context.Context, op ir.Op, l ir.Line) error {
	c := sentence.ParseCommand(l.Args)
	if c.Line == "" {
		return badArguments(l.Text(), "missing command")
	}
	cmd := device.Command{
		Line:    e.interpolate(c.Line),
		Timeout: time.Duration(c.Timeout) * time.Second,
		NoCheck: c.NoCheck,
	}

	var (
		res device.Result
		err error
	)
	switch op {
	case ir.OpExecuteCommand:
		env := e.state.Environment
		if env != sysvar.EnvOS && env != sysvar.EnvUEFIShell {
			return &compiler.EnvironmentError{Op: op.String(), Env: env}
		}
		res, err = e.session.ExecuteCommand(ctx, env, cmd)
	case ir.OpExecuteHostCommand:
		res, err = e.session.ExecuteHostCommand(ctx, cmd)
	case ir.OpExecuteITPCommand:
		res, err = e.session.ExecuteITPCommand(ctx, e.state.ItpLib, cmd)
	}
	if err != nil {
		return err
	}
	if res.Output != "" {
		e.writeLine(strings.TrimRight(res.Output, "\n"))
	}
	if !cmd.NoCheck && res.ExitCode != 0 {
		return &device.ExitError{Command: cmd.Line, Code: res.ExitCode}
	}
	return nil
}

var varPattern = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// interpolate replaces {name} with known variables. Unknown names are
// left as written.
func (e *Executor) interpolate(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(m string) string {
		if v, ok := e.vars[m[1:len(m)-1]]; ok {
			return v
		}
		return m
	})
}

// setBIOSKnobs mirrors the generated knob sequence: CLI knobs through the
// current Environment, menu knobs through a trip to the BIOS setup menu.
func (e *Executor) setBIOSKnobs(ctx context.Context, args []string) error {
	plan, err := compiler.PlanKnobs(args, e.tbl.BiosMenu)
	if err != nil {
		return err
	}
	env := e.state.Environment
	if env != sysvar.EnvOS && env != sysvar.EnvUEFIShell {
		return &compiler.EnvironmentError{Op: ir.OpSetBIOSKnob.String(), Env: env}
	}

	cli := plan.CLIString()
	setCLI := false
	if len(plan.CLI) > 0 {
		ok, err := e.session.CheckBIOSKnobs(ctx, env, cli)
		if err != nil {
			return err
		}
		setCLI = !ok
		if setCLI {
			if err := e.session.SetBIOSKnobs(ctx, env, cli); err != nil {
				return err
			}
			if len(plan.Menu) == 0 {
				if err := e.resetCycle(ctx, env); err != nil {
					return err
				}
				if err := expect(e.session.CheckBIOSKnobs(ctx, env, cli))("double check bios knobs"); err != nil {
					return err
				}
			}
		}
	}
	if len(plan.Menu) == 0 {
		return nil
	}

	if err := e.session.ResetTo(ctx, string(sysvar.EnvBIOSMenu)); err != nil {
		return err
	}
	// The reset cycle and checks run only when every menu knob changed.
	allChanged := true
	for _, m := range plan.Menu {
		c, err := e.session.SetMenuKnob(ctx, m.Knob, m.Value)
		if err != nil {
			return err
		}
		allChanged = allChanged && c
	}
	if allChanged {
		if err := e.resetCycle(ctx, sysvar.EnvBIOSMenu); err != nil {
			return err
		}
		for _, m := range plan.Menu {
			what := fmt.Sprintf("%s/%s is %s", m.Knob.ID, m.Knob.VarName(), m.Value)
			if err := expect(e.session.CheckMenuKnob(ctx, m.Knob, m.Value))(what); err != nil {
				return err
			}
		}
	}
	if err := e.session.ResetTo(ctx, string(env)); err != nil {
		return err
	}
	if setCLI {
		return expect(e.session.CheckBIOSKnobs(ctx, env, cli))("double check")
	}
	return nil
}

// usesDevice reports whether executing op calls the session.
func usesDevice(op ir.Op) bool {
	switch op {
	case ir.OpPrepare, ir.OpStep, ir.OpLog, ir.OpRepeat, ir.OpEnd:
		return false
	}
	return true
}

// bringUp boots the device to the default OS the first time a step needs
// it while the Environment is still unset. It runs at most once.
func (e *Executor) bringUp(ctx context.Context) error {
	if e.defaultOS == "" || e.broughtUp || e.state.Environment != sysvar.EnvUnset {
		return nil
	}
	e.broughtUp = true
	slog.Info("bringing up device", "target", e.defaultOS)
	if err := e.session.BootTo(ctx, e.defaultOS); err != nil {
		return fmt.Errorf("boot to default OS %s: %w", e.defaultOS, err)
	}
	e.state.Environment = sysvar.EnvOS
	if family, ok := sysvar.ParseOSFamily(e.defaultOS); ok {
		e.state.OS = family
	}
	return nil
}

func (e *Executor) resetCycle(ctx context.Context, env sysvar.Environment) error {
	if err := e.session.Reset(ctx, "warm"); err != nil {
		return err
	}
	return e.session.WaitFor(ctx, string(env), DefaultEnvironmentTimeout)
}

func (e *Executor) writeLine(s string) {
	fmt.Fprintln(e.out, s)
}
