package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/pvl/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	ConfigPath string
	Table      string
	BlocksDir  string
	KnobDump   string

	// Config is loaded before any subcommand runs, with flag overrides
	// applied.
	Config *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the PVL CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pvl",
		Short: "PVL - Platform Validation Language toolkit",
		Long: `Translate validation test cases written in high-level steps into
low-level steps and Python scripts, and execute steps against a device
through a single-consumer step queue.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			setupLogging(cmd.ErrOrStderr(), opts.Verbose)
			return opts.loadConfig(cmd)
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "configuration file (default ./"+config.FileName+")")
	cmd.PersistentFlags().StringVar(&opts.Table, "table", "", "mapping table workbook")
	cmd.PersistentFlags().StringVar(&opts.BlocksDir, "blocks", "", "directory of TCD block files")
	cmd.PersistentFlags().StringVar(&opts.KnobDump, "knob-dump", "", "BIOS knob dump XML merged into the feature table")

	// Add subcommands
	cmd.AddCommand(NewTranslateCommand(opts))
	cmd.AddCommand(NewGenerateCommand(opts))
	cmd.AddCommand(NewBuildCommand(opts))
	cmd.AddCommand(NewBatchCommand(opts))
	cmd.AddCommand(NewBiosMenuCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewEnqueueCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setupLogging installs the process-wide slog handler: Info by default,
// Debug with --verbose.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// loadConfig reads the configuration file and applies flag overrides.
func (o *RootOptions) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	flags := cmd.Flags()
	if flags.Changed("table") {
		cfg.Table = o.Table
	}
	if flags.Changed("blocks") {
		cfg.BlocksDir = o.BlocksDir
	}
	if flags.Changed("knob-dump") {
		cfg.KnobDump = o.KnobDump
	}
	if cfg.Source != "" {
		slog.Debug("configuration loaded", "file", cfg.Source)
	}
	o.Config = &cfg
	return nil
}
