package sentence

import (
	"fmt"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/table"
)

// Registry maps step kinds to sentences.
type Registry struct {
	sentences map[ir.Op]*Sentence
	order     []ir.Op
}

// NewRegistry builds one sentence per operation of a rule sheet. Rule
// order is kept. Operation names outside the step-kind enumeration are a
// configuration error.
func NewRegistry(sheet string, groups []ir.OpRules) (*Registry, error) {
	r := &Registry{sentences: make(map[ir.Op]*Sentence, len(groups))}
	for _, g := range groups {
		op, ok := ir.ParseOp(g.Op)
		if !ok {
			return nil, &table.ConfigError{
				Code:    table.ErrUnknownOperation,
				Sheet:   sheet,
				Message: fmt.Sprintf("unknown operation %q", g.Op),
			}
		}
		if _, dup := r.sentences[op]; dup {
			return nil, &table.ConfigError{
				Code:    table.ErrBadRow,
				Sheet:   sheet,
				Message: fmt.Sprintf("operation %q grouped twice", g.Op),
			}
		}
		r.add(New(op, append([]ir.Rule(nil), g.Rules...)))
	}
	return r, nil
}

func (r *Registry) add(s *Sentence) {
	r.sentences[s.Op] = s
	r.order = append(r.order, s.Op)
}

// Lookup returns the sentence of op.
func (r *Registry) Lookup(op ir.Op) (*Sentence, bool) {
	s, ok := r.sentences[op]
	return s, ok
}

// Ensure returns the sentence of op, creating a rule-less one when the
// table declares none. Used for generator-only step kinds.
func (r *Registry) Ensure(op ir.Op) *Sentence {
	if s, ok := r.sentences[op]; ok {
		return s
	}
	s := New(op, nil)
	r.add(s)
	return s
}

// Ops returns the registered step kinds in table order.
func (r *Registry) Ops() []ir.Op {
	return append([]ir.Op(nil), r.order...)
}

// Names returns the registered operation names in table order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, op := range r.order {
		names[i] = op.String()
	}
	return names
}
