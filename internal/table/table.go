// Package table loads the PVL mapping table.
//
// The mapping table is a YAML workbook with four sheets:
//
//	H2L       pattern, output     HLS -> LLS rules
//	L2PY      pattern, output     LLS -> script rules
//	Features  feature, value, knob, knob value
//	BiosMenu  id, display name, menu path segments...
//
// Rule rows are grouped by operation in first-seen order and keep row
// order within an operation, including non-contiguous rows. Rule order
// is significant: translation is first-match.
package table

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/pvl/internal/ir"
)

// Sheet names.
const (
	SheetH2L      = "H2L"
	SheetL2PY     = "L2PY"
	SheetFeatures = "Features"
	SheetBiosMenu = "BiosMenu"
)

// RequiredSheets lists the sheets every workbook must carry.
var RequiredSheets = []string{SheetH2L, SheetL2PY, SheetFeatures, SheetBiosMenu}

// Workbook is the on-disk shape of the mapping table.
type Workbook struct {
	Version string                `yaml:"version"`
	Sheets  map[string][][]string `yaml:"sheets"`
}

// Table is a loaded mapping table.
type Table struct {
	Source   string
	Version  string
	H2L      []ir.OpRules
	L2PY     []ir.OpRules
	Features *FeatureTable
	BiosMenu *MenuTable

	fingerprint string
}

// Fingerprint identifies the table content. Two tables with the same
// sheets have the same fingerprint regardless of YAML formatting.
func (t *Table) Fingerprint() string {
	return t.fingerprint
}

// Load reads and parses a mapping table file.
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Code: ErrFileNotFound, Path: path, Message: "cannot read mapping table", Err: err}
	}
	return Parse(data, path)
}

// Parse parses workbook bytes. source names the data in errors.
func Parse(data []byte, source string) (*Table, error) {
	var wb Workbook
	if err := yaml.Unmarshal(data, &wb); err != nil {
		return nil, &ConfigError{Code: ErrMalformed, Path: source, Message: "invalid workbook", Err: err}
	}
	return FromWorkbook(&wb, source)
}

// FromWorkbook builds a Table from a decoded workbook.
func FromWorkbook(wb *Workbook, source string) (*Table, error) {
	for _, name := range RequiredSheets {
		if _, ok := wb.Sheets[name]; !ok {
			return nil, &ConfigError{Code: ErrMissingSheet, Path: source, Sheet: name, Message: "sheet not found"}
		}
	}

	sheets := make(map[string][][]string, len(wb.Sheets))
	for name, rows := range wb.Sheets {
		sheets[name] = normalizeRows(rows)
	}

	t := &Table{Source: source, Version: wb.Version}
	var err error
	if t.H2L, err = parseRules(sheets[SheetH2L], source, SheetH2L); err != nil {
		return nil, err
	}
	if t.L2PY, err = parseRules(sheets[SheetL2PY], source, SheetL2PY); err != nil {
		return nil, err
	}
	if t.Features, err = parseFeatures(sheets[SheetFeatures], source); err != nil {
		return nil, err
	}
	if t.BiosMenu, err = parseMenu(sheets[SheetBiosMenu], source); err != nil {
		return nil, err
	}

	fp, err := ir.Fingerprint(ir.DomainTable, fingerprintInput(wb.Version, sheets))
	if err != nil {
		return nil, &ConfigError{Code: ErrMalformed, Path: source, Message: "cannot fingerprint table", Err: err}
	}
	t.fingerprint = fp
	return t, nil
}

func normalizeRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		cells := make([]string, len(row))
		for j, c := range row {
			cells[j] = Normalize(c)
		}
		out[i] = cells
	}
	return out
}

func isBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

var placeholderRef = regexp.MustCompile(`<([A-Za-z_][A-Za-z0-9_]*)>`)

func parseRules(rows [][]string, source, sheet string) ([]ir.OpRules, error) {
	var groups []ir.OpRules
	index := make(map[string]int)

	for i, row := range rows {
		rowNum := i + 1
		if isBlankRow(row) {
			continue
		}
		op, tokens, err := ir.ParsePattern(row[0])
		if err != nil {
			return nil, &ConfigError{Code: ErrBadRow, Path: source, Sheet: sheet, Row: rowNum, Message: err.Error()}
		}
		if _, ok := ir.ParseOp(op); !ok {
			return nil, &ConfigError{
				Code: ErrUnknownOperation, Path: source, Sheet: sheet, Row: rowNum,
				Message: fmt.Sprintf("unknown operation %q", op),
			}
		}

		var output []string
		if len(row) > 1 {
			output = splitOutput(row[1])
		}
		if err := checkBound(tokens, output); err != nil {
			return nil, &ConfigError{Code: ErrUnboundVariable, Path: source, Sheet: sheet, Row: rowNum, Message: err.Error()}
		}

		rule := ir.Rule{Pattern: tokens, Output: output, Row: rowNum}
		if g, ok := index[op]; ok {
			groups[g].Rules = append(groups[g].Rules, rule)
			continue
		}
		index[op] = len(groups)
		groups = append(groups, ir.OpRules{Op: op, Rules: []ir.Rule{rule}})
	}
	return groups, nil
}

// splitOutput splits a multi-line output cell. An empty cell yields an
// empty, non-nil slice: the rule matches and emits nothing.
func splitOutput(cell string) []string {
	cell = strings.TrimRight(strings.ReplaceAll(cell, "\r\n", "\n"), "\n")
	if strings.TrimSpace(cell) == "" {
		return []string{}
	}
	return strings.Split(cell, "\n")
}

func checkBound(pattern []ir.Token, output []string) error {
	bound := make(map[string]bool, len(pattern))
	for _, t := range pattern {
		if t.IsPlaceholder() {
			bound[t.Placeholder] = true
		}
	}
	for _, line := range output {
		for _, m := range placeholderRef.FindAllStringSubmatch(line, -1) {
			if !bound[m[1]] {
				return fmt.Errorf("output references unbound placeholder <%s>", m[1])
			}
		}
	}
	return nil
}

func parseFeatures(rows [][]string, source string) (*FeatureTable, error) {
	ft := NewFeatureTable()
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if len(row) < 4 {
			return nil, &ConfigError{
				Code: ErrBadRow, Path: source, Sheet: SheetFeatures, Row: i + 1,
				Message: fmt.Sprintf("expected 4 cells, got %d", len(row)),
			}
		}
		key := FeatureKey{Feature: strings.TrimSpace(row[0]), Value: strings.TrimSpace(row[1])}
		knob := Knob{Name: strings.TrimSpace(row[2]), Value: strings.TrimSpace(row[3])}
		if err := ft.Declare(key, knob); err != nil {
			return nil, &ConfigError{Code: ErrDuplicateFeature, Path: source, Sheet: SheetFeatures, Row: i + 1, Message: err.Error()}
		}
	}
	return ft, nil
}

func parseMenu(rows [][]string, source string) (*MenuTable, error) {
	mt := NewMenuTable()
	for i, row := range rows {
		if isBlankRow(row) {
			continue
		}
		if len(row) < 3 {
			return nil, &ConfigError{
				Code: ErrBadRow, Path: source, Sheet: SheetBiosMenu, Row: i + 1,
				Message: fmt.Sprintf("expected id, name and at least one path segment, got %d cells", len(row)),
			}
		}
		id := strings.TrimSpace(row[0])
		if id == "" || strings.ContainsAny(id, " \t") {
			return nil, &ConfigError{
				Code: ErrBadRow, Path: source, Sheet: SheetBiosMenu, Row: i + 1,
				Message: fmt.Sprintf("menu knob id %q must be a single word", id),
			}
		}
		var path []string
		for _, seg := range row[2:] {
			if seg = strings.TrimSpace(seg); seg != "" {
				path = append(path, seg)
			}
		}
		k := MenuKnob{ID: id, Name: strings.TrimSpace(row[1]), Path: path}
		if err := mt.Add(k); err != nil {
			return nil, &ConfigError{Code: ErrDuplicateMenu, Path: source, Sheet: SheetBiosMenu, Row: i + 1, Message: err.Error()}
		}
	}
	return mt, nil
}

func fingerprintInput(version string, sheets map[string][][]string) map[string]any {
	s := make(map[string]any, len(sheets))
	for name, rows := range sheets {
		items := make([]any, len(rows))
		for i, row := range rows {
			items[i] = append([]string(nil), row...)
		}
		s[name] = items
	}
	return map[string]any{"version": version, "sheets": s}
}

// WithKnobDump returns a copy of t whose feature table also carries the
// dump knobs. t itself is not modified.
func (t *Table) WithKnobDump(knobs []DumpKnob) (*Table, int) {
	c := *t
	c.Features = t.Features.Clone()
	added := MergeKnobDump(c.Features, knobs)
	return &c, added
}
