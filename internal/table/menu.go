package table

import (
	"fmt"
	"strings"
)

// MenuKnob is a knob only reachable through the BIOS setup menu.
type MenuKnob struct {
	ID   string   // logical id used in step lines
	Name string   // display name in the setup menu
	Path []string // menu path segments, outermost first
}

// VarName is the identifier the generated script binds the knob to.
func (m MenuKnob) VarName() string {
	return "menu_knob_" + strings.ToLower(m.ID)
}

// MenuTable holds BIOS-menu-only knobs in declaration order.
type MenuTable struct {
	knobs []MenuKnob
	index map[string]int
}

// NewMenuTable returns an empty table.
func NewMenuTable() *MenuTable {
	return &MenuTable{index: make(map[string]int)}
}

// Add declares a knob. Duplicate ids are rejected.
func (m *MenuTable) Add(k MenuKnob) error {
	if _, ok := m.index[k.ID]; ok {
		return fmt.Errorf("menu knob %q declared twice", k.ID)
	}
	m.index[k.ID] = len(m.knobs)
	m.knobs = append(m.knobs, k)
	return nil
}

// Lookup returns the knob with the given id.
func (m *MenuTable) Lookup(id string) (MenuKnob, bool) {
	i, ok := m.index[id]
	if !ok {
		return MenuKnob{}, false
	}
	return m.knobs[i], true
}

// Has reports whether id is a menu-only knob.
func (m *MenuTable) Has(id string) bool {
	_, ok := m.index[id]
	return ok
}

// Knobs returns every knob in declaration order.
func (m *MenuTable) Knobs() []MenuKnob {
	return append([]MenuKnob(nil), m.knobs...)
}

// Len returns the number of knobs.
func (m *MenuTable) Len() int {
	return len(m.knobs)
}
