package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sentence"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// Validation error codes (E100-E199)
const (
	ErrUnknownOp         = "E101" // step name is not a known operation
	ErrNoRule            = "E102" // arguments match no table row
	ErrRepeatBalance     = "E103" // Repeat/End do not pair up
	ErrSectionOrder      = "E104" // PREPARE after STEP
	ErrInvalidAssignment = "E105" // out-of-domain system variable value
	ErrBadKnobs          = "E106" // Set BIOS knob or Set Feature arguments
)

// ValidationError is one problem found in a TCD.
type ValidationError struct {
	Op      string `json:"op,omitempty"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s", e.Code, e.Line, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Validate checks TCD lines against the mapping table without generating
// code. All problems are returned; it does not stop at the first one.
// Input may mix high- and low-level steps.
func Validate(tbl *table.Table, lines []string) ([]ValidationError, error) {
	h2l, err := sentence.NewRegistry(table.SheetH2L, tbl.H2L)
	if err != nil {
		return nil, err
	}
	gen, err := NewCodeGenerator(tbl, sysvar.New())
	if err != nil {
		return nil, err
	}

	v := &validator{tbl: tbl, h2l: h2l, l2py: gen.reg}
	_, body := SplitPrefix(lines)
	offset := len(lines) - len(body)
	for i, raw := range body {
		v.line(i+offset+1, ir.ParseLine(raw))
	}
	for _, n := range v.open {
		v.add(n, ir.OpRepeat.String(), ErrRepeatBalance, "Repeat without End")
	}
	return v.errs, nil
}

type validator struct {
	tbl       *table.Table
	h2l, l2py *sentence.Registry
	errs      []ValidationError
	open      []int // lines of unclosed Repeat steps
	seenStep  bool
}

func (v *validator) add(line int, op, code, msg string) {
	v.errs = append(v.errs, ValidationError{Op: op, Message: msg, Code: code, Line: line})
}

func (v *validator) line(n int, l ir.Line) {
	switch l.Kind {
	case ir.LineAssign:
		if err := sysvar.New().Set(l.Name, l.Value); sysvar.IsInvalidValue(err) {
			v.add(n, "", ErrInvalidAssignment, err.Error())
		}
		return
	case ir.LineStep:
	default:
		return
	}

	op := l.Op()
	switch op {
	case ir.OpUnknown:
		msg := fmt.Sprintf("unknown operation %q", l.OpName)
		if s := suggestOp(l.OpName); s != "" {
			msg += fmt.Sprintf(", did you mean %q?", s)
		}
		v.add(n, l.OpName, ErrUnknownOp, msg)
	case ir.OpPrepare:
		if v.seenStep {
			v.add(n, l.OpName, ErrSectionOrder, "PREPARE after STEP")
		}
	case ir.OpStep:
		v.seenStep = true
	case ir.OpRepeat:
		if c, err := strconv.Atoi(l.Args); err != nil || c < 1 {
			v.add(n, l.OpName, ErrNoRule, fmt.Sprintf("invalid repeat count %q", l.Args))
		}
		v.open = append(v.open, n)
	case ir.OpEnd:
		if len(v.open) == 0 {
			v.add(n, l.OpName, ErrRepeatBalance, "End without Repeat")
			return
		}
		v.open = v.open[:len(v.open)-1]
	case ir.OpSetFeature:
		v.checkFeatures(n, l)
	case ir.OpRunTCDBlock:
		if _, _, err := parseBlockArgs(sentence.SplitArgs(l.Args)); err != nil {
			v.add(n, l.OpName, ErrNoRule, err.Error())
		}
	case ir.OpSetBIOSKnob:
		if _, err := PlanKnobs(sentence.SplitArgs(l.Args), v.tbl.BiosMenu); err != nil {
			v.add(n, l.OpName, ErrBadKnobs, err.Error())
		}
	default:
		reg := v.l2py
		if op.IsHighLevel() {
			reg = v.h2l
		}
		s, ok := reg.Lookup(op)
		if !ok || sentence.Match(op, s.Rules, s.Args(l.Args), false) == nil {
			v.add(n, l.OpName, ErrNoRule, fmt.Sprintf("no table row matches %q", strings.TrimSpace(l.Raw)))
		}
	}
}

func (v *validator) checkFeatures(n int, l ir.Line) {
	h := &HLSTranslator{tbl: v.tbl}
	if _, err := h.setFeature(sentence.SplitArgs(l.Args), nil); err != nil {
		v.add(n, l.OpName, ErrBadKnobs, err.Error())
	}
}
