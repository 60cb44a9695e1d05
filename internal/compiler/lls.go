package compiler

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sentence"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// Section banners separating the precondition and step sections.
var (
	bannerRule    = "#################################################################"
	prepareBanner = []string{bannerRule, "# Pre-Condition Section", bannerRule}
	stepsBanner   = []string{bannerRule, "# Steps Section", bannerRule}
)

// CodeGenerator translates low-level steps into test script code.
type CodeGenerator struct {
	tbl   *table.Table
	reg   *sentence.Registry
	state *sysvar.State
	label string
}

// NewCodeGenerator returns a generator over tbl's L2PY rules.
func NewCodeGenerator(tbl *table.Table, st *sysvar.State) (*CodeGenerator, error) {
	reg, err := sentence.NewRegistry(table.SheetL2PY, tbl.L2PY)
	if err != nil {
		return nil, err
	}
	g := &CodeGenerator{tbl: tbl, reg: reg, state: st, label: "<input>"}
	g.wire()
	return g, nil
}

// SetLabel names the input in errors.
func (g *CodeGenerator) SetLabel(label string) {
	g.label = label
}

// State returns the state the generator mutates.
func (g *CodeGenerator) State() *sysvar.State {
	return g.state
}

// wire attaches per step-kind behavior. Every low-level op is listed.
func (g *CodeGenerator) wire() {
	for _, op := range ir.AllOps() {
		if !op.IsLowLevel() {
			continue
		}
		switch op {
		case ir.OpStep:
			g.splitWith(op, sentence.SplitStep)
		case ir.OpPrepare, ir.OpLog:
			g.splitWith(op, sentence.SplitLog)
		case ir.OpExecuteCommand:
			if s, ok := g.reg.Lookup(op); ok {
				s.Split = sentence.SplitCommand
				s.Before = requireShellEnvironment
				s.After = prefixByEnvironment
			}
		case ir.OpExecuteHostCommand, ir.OpExecuteITPCommand:
			g.splitWith(op, sentence.SplitCommand)
		case ir.OpSetBIOSKnob:
			menu := g.tbl.BiosMenu
			g.reg.Ensure(op).Generate = func(args []string, st *sysvar.State) ([]string, error) {
				return biosKnobCode(args, st, menu)
			}
		case ir.OpRepeat, ir.OpEnd, ir.OpWait, ir.OpWaitFor, ir.OpReset,
			ir.OpSwitchAC, ir.OpSwitchDC, ir.OpClearCMOS,
			ir.OpCheckEnvironment, ir.OpCheckPowerState:
			// template only
		}
	}
}

func (g *CodeGenerator) splitWith(op ir.Op, split sentence.SplitFunc) {
	if s, ok := g.reg.Lookup(op); ok {
		s.Split = split
	}
}

func requireShellEnvironment(_ []string, st *sysvar.State) error {
	switch st.Environment {
	case sysvar.EnvOS, sysvar.EnvUEFIShell:
		return nil
	}
	return &EnvironmentError{Op: ir.OpExecuteCommand.String(), Env: st.Environment}
}

// prefixByEnvironment selects the calling convention of the current
// Environment for the generated command call.
func prefixByEnvironment(tr *ir.Translation, st *sysvar.State) error {
	if len(tr.Lines) == 0 {
		return nil
	}
	switch st.Environment {
	case sysvar.EnvOS:
		tr.Lines[0] = "sutos." + tr.Lines[0]
	case sysvar.EnvUEFIShell:
		tr.Lines[0] = "UefiShell." + tr.Lines[0]
	default:
		return &EnvironmentError{Op: ir.OpExecuteCommand.String(), Env: st.Environment}
	}
	return nil
}

// numbered is an input line with its 1-based position.
type numbered struct {
	n    int
	text string
}

// block is a run of lines opened by PREPARE/STEP, a banner or the lines
// before the first marker.
type block struct {
	head  *numbered // PREPARE or STEP line, nil otherwise
	lines []numbered
}

// TranslateLines generates the script body for lines. The result is not
// indented; Script places it inside the test function.
func (g *CodeGenerator) TranslateLines(lines []string) ([]string, error) {
	blocks, err := g.parseBlocks(lines)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, b := range blocks {
		if b.head == nil {
			code, err := g.translateBody(b.lines)
			if err != nil {
				return nil, err
			}
			out = append(out, code...)
			continue
		}

		head := ir.ParseLine(b.head.text)
		g.state.InPrepare = head.Op() == ir.OpPrepare
		tr, err := g.translate(head, *b.head)
		if err != nil {
			return nil, err
		}
		if len(tr.Lines) < 2 {
			return nil, g.errAt(*b.head, fmt.Errorf("%s rule must produce a comment and a condition", head.OpName))
		}
		body, err := g.translateBody(b.lines)
		if err != nil {
			return nil, err
		}
		out = append(out, tr.Lines[0])
		out = append(out, ifBlock(tr.Lines[1], body)...)
	}
	return out, nil
}

// parseBlocks splits lines at PREPARE/STEP markers and inserts the
// section banners. A STEP without a description borrows the next
// non-blank line when that line is a comment.
func (g *CodeGenerator) parseBlocks(lines []string) ([]block, error) {
	var (
		blocks      []block
		cur         block
		seenPrepare bool
		seenStep    bool
	)
	flush := func() {
		if cur.head != nil || len(cur.lines) > 0 {
			blocks = append(blocks, cur)
		}
		cur = block{}
	}
	banner := func(text []string) {
		b := block{}
		for _, t := range text {
			b.lines = append(b.lines, numbered{text: t})
		}
		blocks = append(blocks, b)
	}

	for i, raw := range lines {
		l := ir.ParseLine(raw)
		op := l.Op()
		if op != ir.OpPrepare && op != ir.OpStep {
			cur.lines = append(cur.lines, numbered{n: i + 1, text: raw})
			continue
		}

		flush()
		switch op {
		case ir.OpPrepare:
			if seenStep {
				return nil, &StructureError{Code: ErrPrepareAfterStep, Line: i + 1, Message: "PREPARE after STEP"}
			}
			if !seenPrepare {
				banner(prepareBanner)
				seenPrepare = true
			}
		case ir.OpStep:
			if !seenStep {
				banner(stepsBanner)
				seenStep = true
			}
			raw = stepWithDescription(l, lines[i+1:])
		}
		cur.head = &numbered{n: i + 1, text: raw}
	}
	flush()
	return blocks, nil
}

func stepWithDescription(l ir.Line, rest []string) string {
	args := strings.TrimRight(strings.TrimSpace(l.Args), ",")
	text := l.OpName + ": " + strings.TrimSpace(args)
	if strings.Contains(args, ",") {
		return text
	}
	for _, next := range rest {
		t := strings.TrimSpace(next)
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "#") {
			return text + ", " + strings.TrimSpace(strings.TrimLeft(t, "#"))
		}
		break
	}
	return text
}

// translateBody translates the lines of one block. Repeat/End nest and
// each level adds one indentation unit.
func (g *CodeGenerator) translateBody(lines []numbered) ([]string, error) {
	var (
		out   []string
		depth int
		// open Repeat lines and whether their body has a statement
		open []numbered
		body []bool
	)
	emit := func(code []string, statement bool) {
		out = append(out, indent(code, depth)...)
		if statement {
			for i := range body {
				body[i] = true
			}
		}
	}

	for _, nl := range lines {
		l := ir.ParseLine(nl.text)
		switch l.Kind {
		case ir.LineBlank:
			out = append(out, "")
			continue
		case ir.LineComment:
			emit([]string{l.Text()}, false)
			continue
		case ir.LineText:
			emit([]string{l.Text()}, true)
			continue
		case ir.LineAssign:
			code, err := g.assign(l)
			if err != nil {
				return nil, g.errAt(nl, err)
			}
			emit([]string{code}, true)
			continue
		}

		op := l.Op()
		switch {
		case op == ir.OpPrepare || op == ir.OpStep:
			return nil, &StructureError{Code: ErrEmbeddedBlock, Line: nl.n, Message: fmt.Sprintf("%s inside a block", l.OpName)}
		case op == ir.OpEnd:
			if depth == 0 {
				return nil, &StructureError{Code: ErrUnmatchedEnd, Line: nl.n, Message: "End without Repeat"}
			}
			if !body[len(body)-1] {
				return nil, &StructureError{Code: ErrEmptyRepeat, Line: open[len(open)-1].n, Message: "Repeat has no body"}
			}
			tr, err := g.translate(l, nl)
			if err != nil {
				return nil, err
			}
			depth--
			open, body = open[:len(open)-1], body[:len(body)-1]
			emit(tr.Lines, false)
			continue
		case op == ir.OpRepeat:
			if n, err := strconv.Atoi(strings.TrimSpace(l.Args)); err != nil || n < 1 {
				return nil, &StructureError{Code: ErrBadRepeatCount, Line: nl.n, Message: fmt.Sprintf("invalid repeat count %q", l.Args)}
			}
			tr, err := g.translate(l, nl)
			if err != nil {
				return nil, err
			}
			emit(tr.Lines, true)
			depth++
			open, body = append(open, nl), append(body, false)
			continue
		case op.IsHighLevel():
			return nil, g.errAt(nl, fmt.Errorf("high-level step %q must be lowered first", l.OpName))
		case op == ir.OpUnknown:
			// Not a step of the language: keep the line as code.
			emit([]string{l.Text()}, true)
			continue
		}

		tr, err := g.translate(l, nl)
		if err != nil {
			return nil, err
		}
		emit(tr.Lines, hasStatement(tr.Lines))
	}

	if depth > 0 {
		return nil, &StructureError{Code: ErrUnmatchedRepeat, Line: open[len(open)-1].n, Message: "Repeat without End"}
	}
	return out, nil
}

// translate runs a step through its sentence. A step whose sentence has
// no matching rule is an error here: the code generator has no
// pass-through for language steps.
func (g *CodeGenerator) translate(l ir.Line, nl numbered) (*ir.Translation, error) {
	s, ok := g.reg.Lookup(l.Op())
	if !ok {
		return nil, g.errAt(nl, fmt.Errorf("no %s rules for %q", table.SheetL2PY, l.OpName))
	}
	tr, err := s.Translate(l.Args, g.state, true)
	if err != nil {
		return nil, g.errAt(nl, err)
	}
	if tr == nil {
		return nil, g.errAt(nl, fmt.Errorf("cannot parse %q", l.Text()))
	}
	return tr, nil
}

// assign renders an assignment. System variables are tracked and
// forwarded to the test case object; other names become script
// variables.
func (g *CodeGenerator) assign(l ir.Line) (string, error) {
	if !sysvar.IsSystemVariable(l.Name) {
		return fmt.Sprintf("%s = %s", l.Name, l.Value), nil
	}
	err := g.state.Set(l.Name, l.Value)
	switch {
	case err == nil:
		slog.Debug("system variable changed", "name", l.Name, "value", l.Value)
		return fmt.Sprintf(`tcd.%s = "%s"`, strings.ToLower(l.Name), pyQuote(ir.Unquote(l.Value))), nil
	case sysvar.IsInvalidValue(err):
		slog.Warn("system variable unchanged", "name", l.Name, "value", l.Value, "error", err)
		return fmt.Sprintf("%s = %s", l.Name, l.Value), nil
	default:
		return "", err
	}
}

func (g *CodeGenerator) errAt(nl numbered, err error) error {
	return &TranslateError{Label: g.label, Line: nl.n, Text: strings.TrimSpace(nl.text), Err: err}
}
