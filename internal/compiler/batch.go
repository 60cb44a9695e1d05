package compiler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// TCDExt is the file extension of test case descriptions.
const TCDExt = ".tcd"

// BuildOptions configures HLS-to-script translation.
type BuildOptions struct {
	BlocksDir  string
	CheckStage bool
	ReadFile   func(string) ([]byte, error)
}

// Build lowers HLS lines and generates a script. Each call starts from a
// fresh System Variable State.
func Build(tbl *table.Table, lines []string, label string, opts BuildOptions) (ScriptMeta, []string, error) {
	meta, body := SplitPrefix(lines)

	st := sysvar.New()
	st.CheckStage = opts.CheckStage
	hls, err := NewHLSTranslator(tbl, st, HLSOptions{BlocksDir: opts.BlocksDir, ReadFile: opts.ReadFile})
	if err != nil {
		return meta, nil, err
	}
	lls, err := hls.TranslateLines(body, label)
	if err != nil {
		return meta, nil, err
	}

	// The generator replays the low-level assignments, so it starts over.
	st.Reset()
	gen, err := NewCodeGenerator(tbl, st)
	if err != nil {
		return meta, nil, err
	}
	gen.SetLabel(label)
	script, err := gen.Script(lls, meta)
	if err != nil {
		return meta, nil, err
	}
	return meta, script, nil
}

// BatchOptions configures Batch.
type BatchOptions struct {
	BuildOptions
	OutDir string
	// Concurrency bounds parallel translations; <= 0 means unbounded.
	Concurrency int
}

// BatchResult is the outcome of one TCD file.
type BatchResult struct {
	Source      string
	Output      string
	Meta        ScriptMeta
	Fingerprint string
	Err         error
}

// FindTCDs lists the TCD files of dir in name order.
func FindTCDs(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+TCDExt))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// ScriptName is the output file name for a TCD: <ID>.py, or the source
// base name when the TCD has no ID.
func ScriptName(source string, meta ScriptMeta) string {
	name := meta.ID
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	}
	// IDs are often links; keep the last path element.
	if i := strings.LastIndexAny(name, "/#="); i >= 0 && i < len(name)-1 {
		name = name[i+1:]
	}
	return unsafeFileChars.ReplaceAllString(name, "_") + ".py"
}

// Batch translates TCD files concurrently into scripts under OutDir.
// A failing file does not stop the others; results keep input order and
// the returned error joins every per-file failure.
func Batch(ctx context.Context, tbl *table.Table, sources []string, opts BatchOptions) ([]BatchResult, error) {
	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	readFile := opts.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}

	results := make([]BatchResult, len(sources))
	scripts := make([][]string, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}

	for i, src := range sources {
		results[i].Source = src
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := readFile(src)
			if err != nil {
				results[i].Err = err
				return nil
			}
			meta, script, err := Build(tbl, ir.SplitLines(string(data)), src, opts.BuildOptions)
			results[i].Meta = meta
			if err != nil {
				results[i].Err = err
				return nil
			}
			scripts[i] = script
			results[i].Fingerprint = ir.ScriptFingerprint(script)
			results[i].Output = filepath.Join(opts.OutDir, ScriptName(src, meta))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	// Writes happen after translation so duplicate names are caught
	// before anything is overwritten.
	seen := make(map[string]string)
	var errs []error
	for i := range results {
		r := &results[i]
		if r.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
			continue
		}
		if prev, dup := seen[r.Output]; dup {
			r.Err = fmt.Errorf("output %s already written for %s", r.Output, prev)
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, r.Err))
			continue
		}
		seen[r.Output] = r.Source
	}

	for i := range results {
		r := &results[i]
		if r.Err != nil {
			continue
		}
		if err := WriteLines(r.Output, scripts[i]); err != nil {
			r.Err = err
			errs = append(errs, fmt.Errorf("%s: %w", r.Source, err))
			continue
		}
		slog.Info("script written", "source", r.Source, "output", r.Output, "fingerprint", r.Fingerprint[:12])
	}
	return results, errors.Join(errs...)
}

// WriteLines writes lines to path, one per line.
func WriteLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}
