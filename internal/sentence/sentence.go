// Package sentence implements table-driven step translation.
//
// A Sentence holds the ordered template rules of one step kind and
// translates an argument string by first structural match. Step kinds
// with extra behavior are assembled by composition: an argument splitter,
// before/after hooks that read or mutate the System Variable State, and
// an optional generator that replaces template matching entirely.
package sentence

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sysvar"
)

// SplitFunc turns an argument string into the argument list matched
// against rule patterns.
type SplitFunc func(args string) []string

// HookFunc runs before matching. A non-nil error aborts the translation.
type HookFunc func(args []string, st *sysvar.State) error

// AfterFunc runs after a successful match and may rewrite the result.
type AfterFunc func(tr *ir.Translation, st *sysvar.State) error

// GenerateFunc produces output lines without templates.
type GenerateFunc func(args []string, st *sysvar.State) ([]string, error)

// Sentence translates one step kind.
type Sentence struct {
	Op    ir.Op
	Rules []ir.Rule

	Split    SplitFunc
	Before   HookFunc
	After    AfterFunc
	Generate GenerateFunc

	// Phase support, enforced only when State.CheckStage is set.
	StepSupport    bool
	PrepareSupport bool
}

// New returns a sentence with the default splitter that is valid in
// both phases.
func New(op ir.Op, rules []ir.Rule) *Sentence {
	return &Sentence{
		Op:             op,
		Rules:          rules,
		StepSupport:    true,
		PrepareSupport: true,
	}
}

// Args splits an argument string with the sentence's splitter.
func (s *Sentence) Args(args string) []string {
	if s.Split != nil {
		return s.Split(args)
	}
	return SplitArgs(args)
}

// Translate matches args against the sentence's rules.
//
// Returns (nil, nil) when no rule matches; the caller decides whether that
// means an unknown step or a pass-through line. When escape is set, single
// quotes in substituted values are escaped.
func (s *Sentence) Translate(args string, st *sysvar.State, escape bool) (*ir.Translation, error) {
	if err := s.checkPhase(st); err != nil {
		return nil, err
	}

	argv := s.Args(args)
	if s.Before != nil {
		if err := s.Before(argv, st); err != nil {
			return nil, err
		}
	}

	var tr *ir.Translation
	if s.Generate != nil {
		lines, err := s.Generate(argv, st)
		if err != nil {
			return nil, err
		}
		if lines == nil {
			lines = []string{}
		}
		tr = &ir.Translation{Op: s.Op, Lines: lines, Args: argv}
	} else {
		tr = Match(s.Op, s.Rules, argv, escape)
		if tr == nil {
			return nil, nil
		}
	}

	if s.After != nil {
		if err := s.After(tr, st); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

func (s *Sentence) checkPhase(st *sysvar.State) error {
	if st == nil || !st.CheckStage {
		return nil
	}
	if st.InPrepare && !s.PrepareSupport {
		return &PolicyError{Op: s.Op, Phase: PhasePrepare}
	}
	if !st.InPrepare && !s.StepSupport {
		return &PolicyError{Op: s.Op, Phase: PhaseStep}
	}
	return nil
}

// Match finds the first rule whose pattern structurally matches argv and
// substitutes the bound values into its output. Returns nil when no rule
// matches.
func Match(op ir.Op, rules []ir.Rule, argv []string, escape bool) *ir.Translation {
	for _, r := range rules {
		bindings, ok := bind(r.Pattern, argv)
		if !ok {
			continue
		}
		lines := make([]string, len(r.Output))
		for i, line := range r.Output {
			lines[i] = substitute(line, bindings, escape)
		}
		return &ir.Translation{Op: op, Lines: lines, Args: argv}
	}
	return nil
}

type binding struct {
	name  string
	value string
}

// bind checks arity and literals. Literals compare case-sensitively.
func bind(pattern []ir.Token, argv []string) ([]binding, bool) {
	if len(pattern) != len(argv) {
		return nil, false
	}
	var out []binding
	for i, tok := range pattern {
		if tok.IsPlaceholder() {
			out = append(out, binding{name: tok.Placeholder, value: argv[i]})
			continue
		}
		if tok.Literal != argv[i] {
			return nil, false
		}
	}
	return out, true
}

// substitute replaces every <name> with its bound value. Replacement is
// plain substring replacement in pattern order.
func substitute(line string, bindings []binding, escape bool) string {
	for _, b := range bindings {
		v := b.value
		if escape {
			v = EscapeSingleQuotes(v)
		}
		line = strings.ReplaceAll(line, "<"+b.name+">", v)
	}
	return line
}

// EscapeSingleQuotes makes v safe inside a single-quoted string literal.
func EscapeSingleQuotes(v string) string {
	return strings.ReplaceAll(v, "'", `\'`)
}

// Phase names used in policy errors.
const (
	PhasePrepare = "precondition"
	PhaseStep    = "step"
)

// PolicyError reports a step used in a phase it does not support.
type PolicyError struct {
	Op    ir.Op
	Phase string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%q is not allowed in the %s phase", e.Op.String(), e.Phase)
}

// IsPolicyError reports whether err is a phase policy violation.
func IsPolicyError(err error) bool {
	var pe *PolicyError
	return errors.As(err, &pe)
}
