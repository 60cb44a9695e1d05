package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/compiler"
	"github.com/roach88/pvl/internal/engine"
	"github.com/roach88/pvl/internal/inbox"
)

// EnqueueOptions holds flags for the enqueue command.
type EnqueueOptions struct {
	*RootOptions
	Steps []string
	File  string
}

// EnqueueResult is the JSON payload of the enqueue command.
type EnqueueResult struct {
	Inbox string   `json:"inbox"`
	Files []string `json:"files"`
}

// NewEnqueueCommand creates the enqueue command.
func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "enqueue <inbox-dir>",
		Short: "Submit steps to a watching worker",
		Long: `Submit steps to the inbox directory of a running 'pvl watch'.

Each --step is queued as one step. A --file is split like 'pvl run' does:
one step per line, Repeat blocks whole. Step files are written atomically
and named so the worker consumes them in submission order.

Example:
  pvl enqueue ./inbox --step "Boot to: OS" --step "Execute Command: uname -a"
  pvl enqueue ./inbox --file smoke.steps`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueueSteps(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVar(&opts.Steps, "step", nil, "step text (repeatable)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "steps file to submit (- for stdin)")

	return cmd
}

func enqueueSteps(opts *EnqueueOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	var steps []string
	for _, s := range opts.Steps {
		if strings.TrimSpace(s) != "" {
			steps = append(steps, s)
		}
	}
	if opts.File != "" {
		lines, err := readLines(opts.File, cmd.InOrStdin())
		if err != nil {
			return loadFailure(formatter, err)
		}
		_, body := compiler.SplitPrefix(lines)
		steps = append(steps, engine.SplitSteps(body)...)
	}
	if len(steps) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "nothing to enqueue: pass --step or --file", nil)
	}

	result := EnqueueResult{Inbox: dir}
	for _, s := range steps {
		path, err := inbox.Submit(dir, s)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "submitting step", err)
		}
		formatter.VerboseLog("Submitted %s", path)
		result.Files = append(result.Files, path)
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Enqueued %d step(s) in %s\n", len(result.Files), dir)
	return nil
}
