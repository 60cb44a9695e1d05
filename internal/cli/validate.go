package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/compiler"
)

// FileValidation holds the validation result of one file.
type FileValidation struct {
	File   string                     `json:"file"`
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                  `json:"valid"`
	Files  []FileValidation      `json:"files"`
	Blocks []compiler.BlockIssue `json:"blocks,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <tcd-file|tcd-dir>...",
		Short: "Validate TCDs without generating code",
		Long: `Validate TCDs against the mapping table without generating code.

Reports unknown operations, steps no table row matches, unbalanced
Repeat/End, PREPARE after STEP, out-of-domain assignments and bad knob
arguments. Every problem is listed, not only the first. The TCD block
include graph is checked for cycles and missing blocks.

A directory argument validates every .tcd file in it.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	files, err := expandTCDArgs(args)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "cannot list inputs", err)
	}
	tbl, err := loadTable(opts.Config)
	if err != nil {
		return loadFailure(formatter, err)
	}
	formatter.VerboseLog("Validating %d file(s) against table %s", len(files), tbl.Version)

	result := ValidationResult{Valid: true}
	for _, f := range files {
		lines, err := readLines(f, cmd.InOrStdin())
		if err != nil {
			return loadFailure(formatter, err)
		}
		errs, err := compiler.Validate(tbl, lines)
		if err != nil {
			return formatter.Fail(ExitCommandError, ErrCodeTable, "mapping table rejected", err)
		}
		result.Files = append(result.Files, FileValidation{File: f, Valid: len(errs) == 0, Errors: errs})
		if len(errs) > 0 {
			result.Valid = false
		}
	}

	var roots []string
	for _, f := range files {
		if f != "-" {
			roots = append(roots, f)
		}
	}
	issues, err := compiler.AnalyzeBlocks(opts.Config.BlocksDir, roots)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "reading TCD blocks", err)
	}
	if len(issues) > 0 {
		result.Blocks = issues
		result.Valid = false
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func printValidation(f *OutputFormatter, result ValidationResult) {
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(f.Writer, "✓ %s\n", fv.File)
			continue
		}
		fmt.Fprintf(f.Writer, "✗ %s\n", fv.File)
		for _, e := range fv.Errors {
			fmt.Fprintf(f.Writer, "  %s\n", e.Error())
		}
	}
	for _, issue := range result.Blocks {
		fmt.Fprintf(f.Writer, "✗ blocks: %s\n", issue.Message)
	}
	if result.Valid {
		fmt.Fprintln(f.Writer, "Validation passed")
	}
}

// expandTCDArgs replaces directory arguments with the TCD files they
// hold.
func expandTCDArgs(args []string) ([]string, error) {
	var files []string
	for _, a := range args {
		if a == "-" {
			files = append(files, a)
			continue
		}
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, a)
			continue
		}
		found, err := compiler.FindTCDs(a)
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, fmt.Errorf("no %s files in %s", compiler.TCDExt, a)
		}
		files = append(files, found...)
	}
	return files, nil
}
