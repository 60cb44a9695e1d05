package ir

import (
	"regexp"
	"strings"
)

// LineKind classifies a raw step line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineComment
	LineAssign
	LineStep
	// LineText is anything else: not a comment, not an assignment and
	// without an "Op:" prefix.
	LineText
)

// Line is a classified step line. The raw text is never modified.
type Line struct {
	Raw    string
	Kind   LineKind
	Indent int // leading spaces, tabs count as four

	// Set for LineStep.
	OpName string
	Args   string

	// Set for LineAssign.
	Name  string
	Value string
}

var assignPattern = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)\s*=\s*("[^"]*"|'[^']*'|[A-Za-z0-9_ .+\-/]+)$`)

// ParseLine classifies one line of VL text.
func ParseLine(raw string) Line {
	l := Line{Raw: raw, Indent: indentOf(raw)}
	text := strings.TrimSpace(raw)

	switch {
	case text == "":
		l.Kind = LineBlank
		return l
	case strings.HasPrefix(text, "#"):
		l.Kind = LineComment
		return l
	}

	if name, value, ok := ParseAssignment(text); ok {
		l.Kind = LineAssign
		l.Name = name
		l.Value = value
		return l
	}

	op, args, found := strings.Cut(text, ":")
	if !found {
		l.Kind = LineText
		return l
	}
	l.Kind = LineStep
	l.OpName = strings.TrimSpace(op)
	l.Args = strings.TrimSpace(args)
	return l
}

// ParseAssignment splits a `name=value` line. The value is returned as
// written, quotes included.
func ParseAssignment(text string) (name, value string, ok bool) {
	m := assignPattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return "", "", false
	}
	value = strings.TrimSpace(m[2])
	if value == "" {
		return "", "", false
	}
	return m[1], value, true
}

// Unquote strips one level of matching single or double quotes.
func Unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// Op resolves the step's operation. Returns OpUnknown for non-step lines
// and for names outside the enumeration.
func (l Line) Op() Op {
	if l.Kind != LineStep {
		return OpUnknown
	}
	op, _ := ParseOp(l.OpName)
	return op
}

// Text returns the line with surrounding whitespace removed.
func (l Line) Text() string {
	return strings.TrimSpace(l.Raw)
}

func indentOf(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return 0
}

// SplitLines splits file content into lines, dropping a trailing CR on each.
func SplitLines(content string) []string {
	if content == "" {
		return nil
	}
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
