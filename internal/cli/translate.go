package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/compiler"
	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// TranslateOptions holds flags for translate, generate and build.
type TranslateOptions struct {
	*RootOptions
	Output string // output file path
}

// TranslateResult is the JSON payload of translate, generate and build.
type TranslateResult struct {
	Source      string   `json:"source"`
	Output      string   `json:"output,omitempty"`
	Lines       []string `json:"lines,omitempty"`
	Fingerprint string   `json:"fingerprint"`
}

// translateFunc turns input lines into output lines.
type translateFunc func(tbl *table.Table, lines []string, label string) ([]string, error)

// NewTranslateCommand creates the translate command (HLS to LLS).
func NewTranslateCommand(rootOpts *RootOptions) *cobra.Command {
	return newTranslateCommand(rootOpts, "translate <tcd-file>",
		"Lower high-level steps to low-level steps",
		`Lower a TCD written in high-level steps (Boot to, Reset to, Set Feature,
Run TCD Block) to low-level steps using the H2L sheet of the mapping table.

The ID/TITLE/DOMAIN prefix lines are kept so the result can be fed to
'pvl generate'. Use "-" to read from stdin.

Example:
  pvl translate case.tcd -o case.lls`,
		func(opts *TranslateOptions) translateFunc {
			return func(tbl *table.Table, lines []string, label string) ([]string, error) {
				meta, body := compiler.SplitPrefix(lines)
				st := sysvar.New()
				st.CheckStage = opts.Config.CheckSyntax
				hls, err := compiler.NewHLSTranslator(tbl, st, compiler.HLSOptions{BlocksDir: opts.Config.BlocksDir})
				if err != nil {
					return nil, err
				}
				lls, err := hls.TranslateLines(body, label)
				if err != nil {
					return nil, err
				}
				return append(meta.Lines(), lls...), nil
			}
		})
}

// NewGenerateCommand creates the generate command (LLS to script).
func NewGenerateCommand(rootOpts *RootOptions) *cobra.Command {
	return newTranslateCommand(rootOpts, "generate <lls-file>",
		"Generate a Python script from low-level steps",
		`Generate a Python test script from low-level steps using the L2PY sheet
of the mapping table.

Example:
  pvl generate case.lls -o case.py`,
		func(opts *TranslateOptions) translateFunc {
			return func(tbl *table.Table, lines []string, label string) ([]string, error) {
				meta, body := compiler.SplitPrefix(lines)
				st := sysvar.New()
				st.CheckStage = opts.Config.CheckSyntax
				gen, err := compiler.NewCodeGenerator(tbl, st)
				if err != nil {
					return nil, err
				}
				gen.SetLabel(label)
				return gen.Script(body, meta)
			}
		})
}

// NewBuildCommand creates the build command (HLS to script).
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	return newTranslateCommand(rootOpts, "build <tcd-file>",
		"Translate high-level steps straight to a Python script",
		`Run translate and generate in one pass.

Example:
  pvl build case.tcd -o case.py`,
		func(opts *TranslateOptions) translateFunc {
			return func(tbl *table.Table, lines []string, label string) ([]string, error) {
				_, script, err := compiler.Build(tbl, lines, label, compiler.BuildOptions{
					BlocksDir:  opts.Config.BlocksDir,
					CheckStage: opts.Config.CheckSyntax,
				})
				return script, err
			}
		})
}

func newTranslateCommand(rootOpts *RootOptions, use, short, long string, fn func(*TranslateOptions) translateFunc) *cobra.Command {
	opts := &TranslateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Long:          long,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(opts, args[0], fn(opts), cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runTranslate(opts *TranslateOptions, source string, translate translateFunc, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	tbl, err := loadTable(opts.Config)
	if err != nil {
		return loadFailure(formatter, err)
	}
	lines, err := readLines(source, cmd.InOrStdin())
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Read %d line(s) from %s", len(lines), source)

	out, err := translate(tbl, lines, source)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeTranslate, "translation failed", err)
	}

	result := TranslateResult{
		Source:      source,
		Output:      opts.Output,
		Fingerprint: ir.ScriptFingerprint(out),
	}
	if opts.Output != "" {
		if err := compiler.WriteLines(opts.Output, out); err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing output file", err)
		}
	}

	if formatter.IsJSON() {
		if opts.Output == "" {
			result.Lines = out
		}
		return formatter.Success(result)
	}
	if opts.Output == "" {
		return writeOutput(formatter.Writer, "", out)
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %d line(s) to %s\n", len(out), opts.Output)
	return nil
}

// loadFailure reports a table or input load error as a command error.
func loadFailure(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return formatter.Fail(ExitCommandError, loadErr.Code, loadErr.Message, loadErr.Err)
	}
	return formatter.Fail(ExitCommandError, ErrCodeGeneric, "load failed", err)
}
