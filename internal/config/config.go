// Package config loads pvl.cue, the project configuration file.
//
// The file is CUE. It is unified with an embedded #Config schema that
// supplies every default, so a missing file and an empty file both yield
// the defaults.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
)

// FileName is the configuration file looked up in the working directory.
const FileName = "pvl.cue"

const schemaFile = "schema.cue"

//go:embed schema.cue
var schemaCUE string

// Config is the decoded configuration. Relative paths are resolved
// against the directory of the file they were read from.
type Config struct {
	Table           string
	BlocksDir       string
	KnobDump        string
	Database        string
	OutputDir       string
	CheckSyntax     bool
	Concurrency     int
	MaxSteps        int
	DefaultOS       string
	MonitorInterval time.Duration
	Vars            map[string]string

	// Source is the file the configuration was read from, empty for
	// defaults.
	Source string
}

// fileConfig mirrors #Config field for field.
type fileConfig struct {
	Table           string            `json:"table"`
	BlocksDir       string            `json:"blocks_dir"`
	KnobDump        string            `json:"knob_dump"`
	Database        string            `json:"database"`
	OutputDir       string            `json:"output_dir"`
	CheckSyntax     bool              `json:"check_syntax"`
	Concurrency     int               `json:"concurrency"`
	MaxSteps        int               `json:"max_steps"`
	DefaultOS       string            `json:"default_os"`
	MonitorInterval string            `json:"monitor_interval"`
	Vars            map[string]string `json:"vars"`
}

// Error is a configuration error, positioned when CUE reports one.
type Error struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *Error) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsError reports whether err is a configuration error.
func IsError(err error) bool {
	var ce *Error
	return errors.As(err, &ce)
}

// Default returns the configuration used when no file exists.
func Default() Config {
	cfg, err := compile(nil, "")
	if err != nil {
		panic(fmt.Sprintf("config: embedded schema: %v", err))
	}
	return cfg
}

// Load reads the configuration. An empty path looks for pvl.cue in the
// working directory and falls back to Default when it is absent; an
// explicit path must exist.
func Load(path string) (Config, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, &Error{Field: "file", Message: err.Error()}
	}
	return Parse(data, path)
}

// Parse decodes configuration source. filename is used in error
// positions and as the base for relative paths.
func Parse(data []byte, filename string) (Config, error) {
	return compile(data, filename)
}

func compile(data []byte, filename string) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename(schemaFile))
	if err := schema.Err(); err != nil {
		return Config{}, formatCUEError(err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	var file cue.Value
	if data != nil {
		file = ctx.CompileBytes(data, cue.Filename(filename))
		if err := file.Err(); err != nil {
			return Config{}, formatCUEError(err)
		}
		v = v.Unify(file)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, formatCUEError(err, file)
	}

	var raw fileConfig
	if err := v.Decode(&raw); err != nil {
		return Config{}, formatCUEError(err, file)
	}

	interval, err := time.ParseDuration(raw.MonitorInterval)
	if err != nil || interval <= 0 {
		return Config{}, &Error{
			Field:   "monitor_interval",
			Message: fmt.Sprintf("invalid duration %q", raw.MonitorInterval),
			Pos:     v.LookupPath(cue.ParsePath("monitor_interval")).Pos(),
		}
	}

	cfg := Config{
		Table:           raw.Table,
		BlocksDir:       raw.BlocksDir,
		KnobDump:        raw.KnobDump,
		Database:        raw.Database,
		OutputDir:       raw.OutputDir,
		CheckSyntax:     raw.CheckSyntax,
		Concurrency:     raw.Concurrency,
		MaxSteps:        raw.MaxSteps,
		DefaultOS:       raw.DefaultOS,
		MonitorInterval: interval,
		Vars:            raw.Vars,
		Source:          filename,
	}
	if cfg.Vars == nil {
		cfg.Vars = map[string]string{}
	}
	if filename != "" {
		cfg.resolve(filepath.Dir(filename))
	}
	return cfg, nil
}

// resolve makes relative paths relative to dir.
func (c *Config) resolve(dir string) {
	for _, p := range []*string{&c.Table, &c.BlocksDir, &c.KnobDump, &c.Database, &c.OutputDir} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}

// formatCUEError extracts position info from CUE errors. Type conflicts
// against the schema often carry no position of their own; the position
// of the offending field in file is used then.
func formatCUEError(err error, file ...cue.Value) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return &Error{Field: "cue", Message: err.Error()}
	}

	first := errs[0]
	ce := &Error{Field: "cue", Message: first.Error()}
	for _, pos := range append(cueerrors.Positions(first), first.Position()) {
		if pos.IsValid() && pos.Filename() != schemaFile {
			ce.Pos = pos
			break
		}
	}
	// Paths may be rooted at the #Config definition.
	path := first.Path()
	if len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	if len(path) > 0 {
		ce.Field = strings.Join(path, ".")
		if !ce.Pos.IsValid() && len(file) > 0 {
			ce.Pos = fieldPos(file[0], path)
		}
	}
	return ce
}

// fieldPos returns the position of the field at path in v, or an invalid
// position when v has no such field.
func fieldPos(v cue.Value, path []string) token.Pos {
	if !v.Exists() {
		return token.NoPos
	}
	sels := make([]cue.Selector, len(path))
	for i, p := range path {
		sels[i] = cue.Str(p)
	}
	f := v.LookupPath(cue.MakePath(sels...))
	if !f.Exists() {
		return token.NoPos
	}
	return f.Pos()
}
