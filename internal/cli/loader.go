package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/roach88/pvl/internal/compiler"
	"github.com/roach88/pvl/internal/config"
	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/table"
)

// tables shares parsed workbooks between commands of one process, so a
// long-running watch and the commands it triggers parse the table once.
var tables = table.NewCache()

// LoadError represents an error that occurred while loading the table
// or an input file.
type LoadError struct {
	Code    string
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// loadTable resolves and parses the mapping table named by cfg, then
// merges the knob dump if one is configured. Without an explicit table
// and with none on the search path, the built-in table is used.
func loadTable(cfg *config.Config) (*table.Table, error) {
	var tbl *table.Table
	path, err := table.Resolve(cfg.Table)
	switch {
	case err == nil:
		tbl, err = tables.Get(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeTable, Message: "invalid mapping table " + path, Err: err}
		}
		slog.Debug("mapping table loaded", "path", path, "version", tbl.Version)
	case cfg.Table == "":
		tbl, err = table.Default()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeTable, Message: "invalid built-in mapping table", Err: err}
		}
		slog.Debug("using built-in mapping table", "version", tbl.Version)
	default:
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "mapping table not found: " + cfg.Table, Err: err}
	}

	if cfg.KnobDump == "" {
		return tbl, nil
	}
	knobs, err := table.LoadKnobDump(cfg.KnobDump)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeTable, Message: "invalid knob dump " + cfg.KnobDump, Err: err}
	}
	tbl, added := tbl.WithKnobDump(knobs)
	slog.Info("knob dump merged", "path", cfg.KnobDump, "knobs", len(knobs), "features_added", added)
	return tbl, nil
}

// readLines reads an input file, or stdin when path is "-".
func readLines(path string, stdin io.Reader) ([]string, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		code := ErrCodeReadFailed
		if os.IsNotExist(err) {
			code = ErrCodeNotFound
		}
		return nil, &LoadError{Code: code, Message: "cannot read " + path, Err: err}
	}
	return ir.SplitLines(string(data)), nil
}

// writeOutput writes lines to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, lines []string) error {
	if path != "" {
		return compiler.WriteLines(path, lines)
	}
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
