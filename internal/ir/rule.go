package ir

import (
	"fmt"
	"strings"
)

// Token is one formal parameter of a rule pattern: either a literal that
// must match exactly or a <name> placeholder that binds any value.
type Token struct {
	Literal     string
	Placeholder string
}

// IsPlaceholder reports whether the token binds a value.
func (t Token) IsPlaceholder() bool {
	return t.Placeholder != ""
}

func (t Token) String() string {
	if t.IsPlaceholder() {
		return "<" + t.Placeholder + ">"
	}
	return t.Literal
}

// Rule is one template row: a parameter pattern and the output lines it
// expands to. Output lines reference placeholders as <name>.
type Rule struct {
	Pattern []Token
	Output  []string
	Row     int // 1-based source row, 0 if synthesized
}

// OpRules groups the rules of one operation in row order.
type OpRules struct {
	Op    string
	Rules []Rule
}

// ParsePattern splits "Op: a, <b>" into the op name and its tokens.
func ParsePattern(pattern string) (string, []Token, error) {
	op, args, found := strings.Cut(strings.TrimSpace(pattern), ":")
	if !found {
		return "", nil, fmt.Errorf("pattern %q: missing ':' after operation name", pattern)
	}
	op = strings.TrimSpace(op)
	if op == "" {
		return "", nil, fmt.Errorf("pattern %q: empty operation name", pattern)
	}
	return op, ParseTokens(args), nil
}

// ParseTokens splits a comma separated parameter list into tokens.
// An empty list yields no tokens.
func ParseTokens(args string) []Token {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil
	}
	parts := strings.Split(args, ",")
	tokens := make([]Token, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) > 2 && strings.HasPrefix(p, "<") && strings.HasSuffix(p, ">") {
			tokens = append(tokens, Token{Placeholder: p[1 : len(p)-1]})
			continue
		}
		tokens = append(tokens, Token{Literal: p})
	}
	return tokens
}

// Translation is the result of translating one step.
//
// Lines == nil means the step is not recognized by the table and should
// be passed through unchanged.
type Translation struct {
	Op    Op
	Lines []string
	Args  []string
}

// PassThrough reports whether the translation carries no output.
func (t *Translation) PassThrough() bool {
	return t == nil || t.Lines == nil
}
