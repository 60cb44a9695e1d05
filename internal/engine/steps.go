package engine

import (
	"strings"

	"github.com/roach88/pvl/internal/ir"
)

// SplitSteps groups the lines of a steps file into queue entries: one
// entry per line, except that a Repeat block and its body stay together
// up to the matching End. Blank and comment lines are dropped. A Repeat
// without End takes the rest of the file, so the executor reports it.
func SplitSteps(lines []string) []string {
	var steps []string
	for i := 0; i < len(lines); i++ {
		l := ir.ParseLine(lines[i])
		switch l.Kind {
		case ir.LineBlank, ir.LineComment:
			continue
		}
		if l.Op() != ir.OpRepeat {
			steps = append(steps, strings.TrimSpace(lines[i]))
			continue
		}
		end := matchEnd(lines, i)
		if end < 0 {
			end = len(lines) - 1
		}
		steps = append(steps, strings.Join(lines[i:end+1], "\n"))
		i = end
	}
	return steps
}
