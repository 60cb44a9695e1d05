package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/compiler"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	*RootOptions
	OutDir      string // overrides output_dir from config
	Concurrency int    // overrides concurrency from config
}

// BatchFileResult is the JSON form of one translated file.
type BatchFileResult struct {
	Source      string `json:"source"`
	Output      string `json:"output,omitempty"`
	ID          string `json:"id,omitempty"`
	Fingerprint string `json:"fingerprint,omitempty"`
	Error       string `json:"error,omitempty"`
}

// BatchSummary is the JSON payload of the batch command.
type BatchSummary struct {
	Files  []BatchFileResult `json:"files"`
	Passed int               `json:"passed"`
	Failed int               `json:"failed"`
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "batch <tcd-dir>",
		Short: "Build every TCD of a directory",
		Long: `Translate every .tcd file of a directory to a Python script.

Files are translated concurrently. Scripts are named after the TCD ID (or
the file name when there is none) and written to the output directory.
A failing file does not stop the others.

Example:
  pvl batch ./cases --out-dir ./scripts -j 4`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd.Context(), opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.OutDir, "out-dir", "", "directory for generated scripts (default from config)")
	cmd.Flags().IntVarP(&opts.Concurrency, "jobs", "j", 0, "parallel translations (default from config)")

	return cmd
}

func runBatch(ctx context.Context, opts *BatchOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	cfg := opts.Config

	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, "TCD directory not found: "+dir, err)
	}
	tbl, err := loadTable(cfg)
	if err != nil {
		return loadFailure(formatter, err)
	}
	sources, err := compiler.FindTCDs(dir)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeReadFailed, "listing "+dir, err)
	}
	if len(sources) == 0 {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("no %s files in %s", compiler.TCDExt, dir), nil)
	}

	outDir := cfg.OutputDir
	if opts.OutDir != "" {
		outDir = opts.OutDir
	}
	if outDir == "" {
		outDir = filepath.Join(dir, "scripts")
	}
	jobs := cfg.Concurrency
	if opts.Concurrency > 0 {
		jobs = opts.Concurrency
	}
	formatter.VerboseLog("Building %d file(s) into %s with %d job(s)", len(sources), outDir, jobs)

	results, err := compiler.Batch(ctx, tbl, sources, compiler.BatchOptions{
		BuildOptions: compiler.BuildOptions{BlocksDir: cfg.BlocksDir, CheckStage: cfg.CheckSyntax},
		OutDir:       outDir,
		Concurrency:  jobs,
	})
	if results == nil && err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "batch failed", err)
	}

	summary := BatchSummary{Files: make([]BatchFileResult, 0, len(results))}
	for _, r := range results {
		fr := BatchFileResult{Source: r.Source, ID: r.Meta.ID}
		if r.Err != nil {
			fr.Error = r.Err.Error()
			summary.Failed++
		} else {
			fr.Output = r.Output
			fr.Fingerprint = r.Fingerprint
			summary.Passed++
		}
		summary.Files = append(summary.Files, fr)
	}

	if formatter.IsJSON() {
		if err := formatter.Success(summary); err != nil {
			return err
		}
	} else {
		for _, fr := range summary.Files {
			if fr.Error != "" {
				fmt.Fprintf(formatter.Writer, "✗ %s: %s\n", fr.Source, fr.Error)
				continue
			}
			fmt.Fprintf(formatter.Writer, "✓ %s -> %s\n", fr.Source, fr.Output)
		}
		fmt.Fprintf(formatter.Writer, "\nBatch Summary: %d passed, %d failed, %d total\n",
			summary.Passed, summary.Failed, len(summary.Files))
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d file(s) failed", summary.Failed))
	}
	return nil
}

// BiosMenuOptions holds flags for the bios-menu command.
type BiosMenuOptions struct {
	*RootOptions
	Output string
}

// NewBiosMenuCommand creates the bios-menu command.
func NewBiosMenuCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BiosMenuOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "bios-menu",
		Short: "Generate BIOS menu knob definitions",
		Long: `Generate the Python definitions module for the BIOS menu knobs of the
mapping table's BIOS_MENU sheet. Generated scripts that set menu knobs
import it.

Example:
  pvl bios-menu -o bios_menu.py`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := newFormatter(opts.RootOptions, cmd)
			tbl, err := loadTable(opts.Config)
			if err != nil {
				return loadFailure(formatter, err)
			}
			lines := compiler.BiosMenuDefinitions(tbl)
			if err := writeOutput(formatter.Writer, opts.Output, lines); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodeWriteFailed, "writing menu definitions", err)
			}
			if opts.Output != "" {
				formatter.VerboseLog("Wrote %d knob(s) to %s", tbl.BiosMenu.Len(), opts.Output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}
