package compiler

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sentence"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// BlockExt is the file extension of TCD blocks.
const BlockExt = ".tcdb"

// HLSOptions configures an HLS translator.
type HLSOptions struct {
	// BlocksDir holds the <name>.tcdb files for Run TCD Block.
	BlocksDir string
	// ReadFile reads block files. Defaults to os.ReadFile.
	ReadFile func(string) ([]byte, error)
}

// HLSTranslator lowers high-level steps to low-level steps.
//
// The translator does not own the System Variable State: it is handed in
// by the caller and mutated in place, so a parent translator and the
// children it creates for Run TCD Block see one state.
type HLSTranslator struct {
	tbl   *table.Table
	reg   *sentence.Registry
	state *sysvar.State
	opts  HLSOptions

	// include stack of Run TCD Block names, outermost first
	stack []string
}

// NewHLSTranslator returns a translator over tbl's H2L rules.
func NewHLSTranslator(tbl *table.Table, st *sysvar.State, opts HLSOptions) (*HLSTranslator, error) {
	return newHLSTranslator(tbl, st, opts, nil)
}

func newHLSTranslator(tbl *table.Table, st *sysvar.State, opts HLSOptions, stack []string) (*HLSTranslator, error) {
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	reg, err := sentence.NewRegistry(table.SheetH2L, tbl.H2L)
	if err != nil {
		return nil, err
	}
	h := &HLSTranslator{tbl: tbl, reg: reg, state: st, opts: opts, stack: stack}
	h.wire()
	return h, nil
}

// wire attaches per step-kind behavior. Every high-level op is listed.
func (h *HLSTranslator) wire() {
	for _, op := range ir.AllOps() {
		if !op.IsHighLevel() {
			continue
		}
		switch op {
		case ir.OpBootTo:
			s := h.reg.Ensure(op)
			s.StepSupport = false
			s.After = afterBootTo
		case ir.OpResetTo:
			s := h.reg.Ensure(op)
			s.After = afterResetTo
		case ir.OpSetFeature:
			s := h.reg.Ensure(op)
			s.Generate = h.setFeature
		case ir.OpRunTCDBlock:
			s := h.reg.Ensure(op)
			s.Generate = h.runTCDBlock
		}
	}
}

// State returns the state the translator mutates.
func (h *HLSTranslator) State() *sysvar.State {
	return h.state
}

// TranslateStep translates one high-level step. Returns (nil, nil) when
// the op has no sentence or no rule matches.
func (h *HLSTranslator) TranslateStep(line ir.Line) (*ir.Translation, error) {
	s, ok := h.reg.Lookup(line.Op())
	if !ok {
		return nil, nil
	}
	return s.Translate(line.Args, h.state, false)
}

// TranslateLines lowers lines. label names the input in errors and logs.
func (h *HLSTranslator) TranslateLines(lines []string, label string) ([]string, error) {
	var out []string
	autoBlank := false

	for i, raw := range lines {
		l := ir.ParseLine(raw)
		lead := raw[:len(raw)-len(strings.TrimLeft(raw, " \t"))]

		switch l.Kind {
		case ir.LineBlank:
			if autoBlank {
				continue
			}
			out = append(out, "")
			continue
		case ir.LineComment:
			out = append(out, raw)
			autoBlank = false
			continue
		case ir.LineText:
			// No "Op:" prefix: an unknown operation like any other.
			slog.Warn("not a step, commented out",
				"label", label, "line", i+1, "text", l.Text(), "suggestion", suggestOp(l.Text()))
			out = append(out, lead+"# "+l.Text())
			autoBlank = false
			continue
		case ir.LineAssign:
			if err := h.assign(l); err != nil {
				return nil, &TranslateError{Label: label, Line: i + 1, Text: l.Text(), Err: err}
			}
			out = append(out, raw)
			autoBlank = false
			continue
		}

		op := l.Op()
		switch op {
		case ir.OpPrepare:
			h.state.InPrepare = true
		case ir.OpStep:
			h.state.InPrepare = false
		}

		tr, err := h.TranslateStep(l)
		if err != nil {
			return nil, &TranslateError{Label: label, Line: i + 1, Text: l.Text(), Err: err}
		}

		if tr.PassThrough() {
			switch {
			case op.IsLowLevel():
				out = append(out, raw)
			case op == ir.OpUnknown:
				slog.Warn("unknown operation, commented out",
					"label", label, "line", i+1, "op", l.OpName, "suggestion", suggestOp(l.OpName))
				out = append(out, lead+"# "+l.Text())
			default:
				slog.Warn("no rule matches, commented out",
					"label", label, "line", i+1, "op", l.OpName, "args", l.Args)
				out = append(out, lead+"# "+l.Text())
			}
			autoBlank = false
			continue
		}

		body := prefixLines(tr.Lines, lead)
		if op.IsBlockLike() {
			if len(out) > 0 && out[len(out)-1] != "" {
				out = append(out, "")
			}
			out = append(out, body...)
			out = append(out, "")
			autoBlank = true
			continue
		}
		out = append(out, body...)
		autoBlank = false
	}
	return out, nil
}

func (h *HLSTranslator) assign(l ir.Line) error {
	if !sysvar.IsSystemVariable(l.Name) {
		return nil
	}
	err := h.state.Set(l.Name, l.Value)
	if sysvar.IsInvalidValue(err) {
		slog.Warn("system variable unchanged", "name", l.Name, "value", l.Value, "error", err)
		return nil
	}
	return err
}

func prefixLines(lines []string, lead string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		if lead == "" || strings.TrimSpace(l) == "" {
			out[i] = l
			continue
		}
		out[i] = lead + l
	}
	return out
}

// afterBootTo records the boot target. A target that names an
// Environment sets it; an OS family implies the OS Environment.
func afterBootTo(tr *ir.Translation, st *sysvar.State) error {
	if len(tr.Args) == 0 {
		return nil
	}
	target := tr.Args[0]
	if env, ok := sysvar.ParseEnvironment(target); ok {
		st.Environment = env
		return nil
	}
	if err := st.Set(sysvar.VarOS, target); err != nil {
		slog.Warn("unknown boot target", "target", target, "error", err)
		return nil
	}
	st.Environment = sysvar.EnvOS
	return nil
}

func afterResetTo(tr *ir.Translation, st *sysvar.State) error {
	if len(tr.Args) == 0 {
		return nil
	}
	if err := st.Set(sysvar.VarEnvironment, tr.Args[0]); err != nil {
		slog.Warn("unknown reset target", "target", tr.Args[0], "error", err)
	}
	return nil
}

// setFeature expands feature settings into one Set BIOS knob step.
// Settings are written "name=value" or as a "name, value" pair.
func (h *HLSTranslator) setFeature(args []string, _ *sysvar.State) ([]string, error) {
	type setting struct{ feature, value string }
	var settings []setting
	for i := 0; i < len(args); i++ {
		if name, value, ok := strings.Cut(args[i], "="); ok {
			settings = append(settings, setting{strings.TrimSpace(name), ir.Unquote(value)})
			continue
		}
		if i+1 >= len(args) {
			return nil, fmt.Errorf("feature %q has no value", args[i])
		}
		settings = append(settings, setting{args[i], ir.Unquote(args[i+1])})
		i++
	}
	if len(settings) == 0 {
		return nil, ErrNoKnobs
	}

	var knobs []table.Knob
	index := make(map[string]int)
	for _, s := range settings {
		found, ok := h.tbl.Features.Lookup(s.feature, s.value)
		if !ok {
			return nil, &FeatureError{Feature: s.feature, Value: s.value}
		}
		for _, k := range found {
			if j, dup := index[k.Name]; dup {
				knobs[j] = k
				continue
			}
			index[k.Name] = len(knobs)
			knobs = append(knobs, k)
		}
	}

	parts := make([]string, len(knobs))
	for i, k := range knobs {
		parts[i] = k.String()
	}
	return []string{fmt.Sprintf("%s: %s", ir.OpSetBIOSKnob, strings.Join(parts, ", "))}, nil
}

// runTCDBlock inlines another step file. The block is translated by a
// child translator sharing this translator's state.
func (h *HLSTranslator) runTCDBlock(args []string, st *sysvar.State) ([]string, error) {
	name, repeat, err := parseBlockArgs(args)
	if err != nil {
		return nil, err
	}
	for _, open := range h.stack {
		if open == name {
			return nil, fmt.Errorf("TCD block cycle: %s", strings.Join(append(append([]string(nil), h.stack...), name), " -> "))
		}
	}

	path := filepath.Join(h.opts.BlocksDir, name+BlockExt)
	data, err := h.opts.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read TCD block %s: %w", name, err)
	}

	child, err := newHLSTranslator(h.tbl, st, h.opts, append(append([]string(nil), h.stack...), name))
	if err != nil {
		return nil, err
	}
	body, err := child.TranslateLines(ir.SplitLines(string(data)), path)
	if err != nil {
		return nil, err
	}
	for len(body) > 0 && strings.TrimSpace(body[len(body)-1]) == "" {
		body = body[:len(body)-1]
	}
	if !hasStatement(body) {
		slog.Debug("skipping empty TCD block", "block", name)
		return []string{"# skip empty TCDB " + name}, nil
	}

	out := []string{"### Call TCDB " + name + " Start"}
	if repeat > 1 {
		out = append(out, fmt.Sprintf("%s: %d", ir.OpRepeat, repeat))
		out = append(out, indent(body, 1)...)
		out = append(out, ir.OpEnd.String()+":")
	} else {
		out = append(out, body...)
	}
	return append(out, "### Call TCDB "+name+" End"), nil
}

// parseBlockArgs reads "name", "name, N" or "name, repeat=N".
func parseBlockArgs(args []string) (string, int, error) {
	if len(args) == 0 || args[0] == "" {
		return "", 0, fmt.Errorf("%s: missing block name", ir.OpRunTCDBlock)
	}
	name := args[0]
	repeat := 1
	if len(args) > 2 {
		return "", 0, fmt.Errorf("%s: too many arguments", ir.OpRunTCDBlock)
	}
	if len(args) == 2 {
		v := strings.TrimSpace(args[1])
		if k, val, ok := strings.Cut(v, "="); ok {
			if strings.TrimSpace(k) != "repeat" {
				return "", 0, fmt.Errorf("%s: unknown argument %q", ir.OpRunTCDBlock, v)
			}
			v = strings.TrimSpace(val)
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return "", 0, fmt.Errorf("%s: invalid repeat count %q", ir.OpRunTCDBlock, args[1])
		}
		repeat = n
	}
	return name, repeat, nil
}
