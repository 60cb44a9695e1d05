package compiler

import "strings"

const indentUnit = "    "

// indent prefixes every non-blank line with level indentation units.
func indent(lines []string, level int) []string {
	if level <= 0 {
		return append([]string(nil), lines...)
	}
	prefix := strings.Repeat(indentUnit, level)
	out := make([]string, len(lines))
	for i, l := range lines {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		out[i] = prefix + l
	}
	return out
}

// ifBlock renders "if cond:" with body. A body without a statement gets a
// pass so the generated code stays valid.
func ifBlock(cond string, body []string) []string {
	out := []string{"if " + cond + ":"}
	if !hasStatement(body) {
		body = append(append([]string(nil), body...), "pass")
	}
	return append(out, indent(body, 1)...)
}

// hasStatement reports whether lines contain anything other than blanks
// and comments.
func hasStatement(lines []string) bool {
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t != "" && !strings.HasPrefix(t, "#") {
			return true
		}
	}
	return false
}

// andItems joins conditions with "and".
func andItems(items []string) string {
	return strings.Join(items, " and ")
}

// pyQuote renders s as a double-quoted literal body.
func pyQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}

// pyRaw renders s as a raw string literal.
func pyRaw(s string) string {
	if strings.Contains(s, "'") && !strings.Contains(s, `"`) {
		return `r"` + s + `"`
	}
	return "r'" + s + "'"
}
