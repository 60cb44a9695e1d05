package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "", cfg.Table)
	assert.Equal(t, "blocks", cfg.BlocksDir)
	assert.Equal(t, "pvl.db", cfg.Database)
	assert.Equal(t, "out", cfg.OutputDir)
	assert.False(t, cfg.CheckSyntax)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, 100000, cfg.MaxSteps)
	assert.Equal(t, "OS", cfg.DefaultOS)
	assert.Equal(t, 5*time.Second, cfg.MonitorInterval)
	assert.Empty(t, cfg.Vars)
	assert.Empty(t, cfg.Source)
}

func TestParse_OverridesAndResolvesPaths(t *testing.T) {
	src := []byte(`
table:            "tables/pvl.yaml"
database:         "/var/lib/pvl/log.db"
check_syntax:     true
concurrency:      8
default_os:       "Linux"
monitor_interval: "250ms"
vars: {
	sut: "sut01"
	logdir: "/tmp/logs"
}
`)
	cfg, err := Parse(src, filepath.Join("proj", FileName))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("proj", "tables", "pvl.yaml"), cfg.Table)
	assert.Equal(t, filepath.Join("proj", "blocks"), cfg.BlocksDir)
	assert.Equal(t, "/var/lib/pvl/log.db", cfg.Database)
	assert.Equal(t, "", cfg.KnobDump)
	assert.True(t, cfg.CheckSyntax)
	assert.Equal(t, 8, cfg.Concurrency)
	assert.Equal(t, "Linux", cfg.DefaultOS)
	assert.Equal(t, 250*time.Millisecond, cfg.MonitorInterval)
	assert.Equal(t, map[string]string{"sut": "sut01", "logdir": "/tmp/logs"}, cfg.Vars)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `tabel: "x.yaml"`},
		{"wrong type", `concurrency: "four"`},
		{"constraint", `concurrency: 0`},
		{"syntax", `table: "unterminated`},
		{"bad duration", `monitor_interval: "soon"`},
		{"non-string var", `vars: retries: 3`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), FileName)
			require.Error(t, err)
			assert.True(t, IsError(err), "got %T: %v", err, err)
		})
	}
}

func TestParse_ErrorPosition(t *testing.T) {
	_, err := Parse([]byte("table: \"t.yaml\"\nconcurrency: \"four\"\n"), "pvl.cue")
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, "pvl.cue", ce.Pos.Filename())
	assert.Equal(t, 2, ce.Pos.Line())
	assert.Equal(t, "concurrency", ce.Field)
	assert.Contains(t, err.Error(), "pvl.cue:2:")
}

func TestParse_ErrorPositionNestedField(t *testing.T) {
	_, err := Parse([]byte("vars: {\n\thost: 42\n}\n"), "pvl.cue")
	require.Error(t, err)

	var ce *Error
	require.ErrorAs(t, err, &ce)
	require.True(t, ce.Pos.IsValid())
	assert.Equal(t, 2, ce.Pos.Line())
	assert.Equal(t, "vars.host", ce.Field)
}

func TestLoad_MissingDefaultFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_ExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	assert.True(t, IsError(err))
}

func TestLoad_WorkingDirectoryFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(`output_dir: "scripts"`), 0o644))
	t.Chdir(dir)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "scripts", cfg.OutputDir)
	assert.Equal(t, FileName, cfg.Source)
}
