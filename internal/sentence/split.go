package sentence

import (
	"strconv"
	"strings"
)

// Command prefix tokens.
const (
	NoCheck       = "nocheck"
	TimeoutPrefix = "timeout="
)

// SplitArgs splits on commas and trims each argument. An empty or
// all-blank string yields no arguments.
func SplitArgs(args string) []string {
	if strings.TrimSpace(args) == "" {
		return nil
	}
	parts := strings.Split(args, ",")
	for i, p := range parts {
		parts[i] = strings.TrimSpace(p)
	}
	return parts
}

// Command is an unpacked command argument list.
type Command struct {
	Line    string
	Timeout int // seconds, 0 when not given
	NoCheck bool
}

// ParseCommand strips leading nocheck and timeout=N tokens, in any order,
// and keeps the remainder as one opaque command. Commas inside the
// command are preserved. A timeout= token whose value is not an integer
// is part of the command. Arguments made only of options leave Line
// empty; callers reject that as a missing command.
func ParseCommand(args string) Command {
	var c Command
	rest := strings.TrimSpace(args)
	for rest != "" {
		head, tail, found := strings.Cut(rest, ",")
		if !c.option(strings.TrimSpace(head)) {
			break
		}
		if !found {
			rest = ""
			break
		}
		rest = strings.TrimSpace(tail)
	}
	c.Line = rest
	return c
}

// option records tok when it is an option not seen before.
func (c *Command) option(tok string) bool {
	switch {
	case tok == NoCheck && !c.NoCheck:
		c.NoCheck = true
		return true
	case strings.HasPrefix(tok, TimeoutPrefix) && c.Timeout == 0:
		n, err := strconv.Atoi(strings.TrimSpace(tok[len(TimeoutPrefix):]))
		if err != nil || n <= 0 {
			return false
		}
		c.Timeout = n
		return true
	}
	return false
}

// Args renders the command in pattern order: nocheck, timeout, command.
// A command without a line has no arguments, so no pattern matches it.
func (c Command) Args() []string {
	if c.Line == "" {
		return nil
	}
	var out []string
	if c.NoCheck {
		out = append(out, NoCheck)
	}
	if c.Timeout > 0 {
		out = append(out, strconv.Itoa(c.Timeout))
	}
	return append(out, c.Line)
}

// SplitCommand is the splitter for command steps.
func SplitCommand(args string) []string {
	return ParseCommand(args).Args()
}

// SplitStep splits "n, description" into at most two arguments. The
// description keeps its commas; double quotes are escaped.
func SplitStep(args string) []string {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil
	}
	num, desc, found := strings.Cut(args, ",")
	num = strings.TrimSpace(num)
	desc = strings.TrimSpace(desc)
	if !found || desc == "" {
		return []string{num}
	}
	return []string{num, EscapeDoubleQuotes(desc)}
}

// SplitLog keeps the whole message as one argument with double quotes
// escaped.
func SplitLog(args string) []string {
	return []string{EscapeDoubleQuotes(strings.TrimSpace(args))}
}

// SplitWhole keeps the whole argument string as one argument.
func SplitWhole(args string) []string {
	args = strings.TrimSpace(args)
	if args == "" {
		return nil
	}
	return []string{args}
}

// EscapeDoubleQuotes makes v safe inside a double-quoted string literal.
func EscapeDoubleQuotes(v string) string {
	return strings.ReplaceAll(v, `"`, `\"`)
}
