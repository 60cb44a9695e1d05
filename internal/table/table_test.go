package table

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalSheets = `
  Features: []
  BiosMenu: []
`

func parseString(t *testing.T, src string) (*Table, error) {
	t.Helper()
	return Parse([]byte(src), "test.yaml")
}

func TestParseGroupsRulesInFirstSeenOrder(t *testing.T) {
	tbl, err := parseString(t, `
version: "1"
sheets:
  H2L:
    - ["Reset to: OS", "Reset: warm"]
    - ["Boot to: UEFI SHELL", "Wait for: UEFI SHELL"]
    - ["Reset to: UEFI SHELL", "Reset: warm"]
    - ["Boot to: <os>", "Wait for: OS"]
  L2PY: []
`+minimalSheets)
	require.NoError(t, err)

	require.Len(t, tbl.H2L, 2)
	assert.Equal(t, "Reset to", tbl.H2L[0].Op)
	assert.Equal(t, "Boot to", tbl.H2L[1].Op)

	// Non-contiguous rows accumulate in row order.
	require.Len(t, tbl.H2L[0].Rules, 2)
	assert.Equal(t, 1, tbl.H2L[0].Rules[0].Row)
	assert.Equal(t, 3, tbl.H2L[0].Rules[1].Row)
	assert.Equal(t, "OS", tbl.H2L[0].Rules[0].Pattern[0].Literal)
	assert.Equal(t, "UEFI SHELL", tbl.H2L[0].Rules[1].Pattern[0].Literal)

	assert.Equal(t, "os", tbl.H2L[1].Rules[1].Pattern[0].Placeholder)
}

func TestParseSplitsOutputLines(t *testing.T) {
	tbl, err := parseString(t, `
sheets:
  H2L: []
  L2PY:
    - - "STEP: <n>, <desc>"
      - |
        ## <n>
        tcd.step("<desc>")
    - ["End:", ""]
`+minimalSheets)
	require.NoError(t, err)

	require.Len(t, tbl.L2PY, 2)
	assert.Equal(t, []string{"## <n>", `tcd.step("<desc>")`}, tbl.L2PY[0].Rules[0].Output)

	end := tbl.L2PY[1].Rules[0]
	assert.NotNil(t, end.Output)
	assert.Empty(t, end.Output)
}

func TestParseMissingSheet(t *testing.T) {
	_, err := parseString(t, `
sheets:
  H2L: []
  L2PY: []
  Features: []
`)
	require.Error(t, err)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrMissingSheet, ce.Code)
	assert.Equal(t, SheetBiosMenu, ce.Sheet)
}

func TestParseMalformedYAML(t *testing.T) {
	_, err := parseString(t, "sheets: [unterminated")
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
}

func TestParseRejectsUnknownOperation(t *testing.T) {
	_, err := parseString(t, `
sheets:
  H2L:
    - ["Teleport to: Mars", "Wait: 1"]
  L2PY: []
`+minimalSheets)
	require.Error(t, err)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrUnknownOperation, ce.Code)
	assert.Equal(t, 1, ce.Row)
}

func TestParseRejectsUnboundPlaceholder(t *testing.T) {
	_, err := parseString(t, `
sheets:
  H2L: []
  L2PY:
    - ["Wait: <seconds>", "tcd.sleep(<secs>)"]
`+minimalSheets)
	require.Error(t, err)

	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrUnboundVariable, ce.Code)
	assert.Contains(t, ce.Error(), "<secs>")
}

func TestParseFeatures(t *testing.T) {
	tbl, err := parseString(t, `
sheets:
  H2L: []
  L2PY: []
  Features:
    - [TXT, Enable, ProcessorLtsxEnable, "0x1"]
    - [VTd, Enable, VTdSupport, "0x1"]
    - [TXT, Enable, ProcessorSmxEnable, "0x1"]
  BiosMenu: []
`)
	require.NoError(t, err)

	knobs, ok := tbl.Features.Lookup("TXT", "Enable")
	require.True(t, ok)
	assert.Equal(t, []Knob{
		{Name: "ProcessorLtsxEnable", Value: "0x1"},
		{Name: "ProcessorSmxEnable", Value: "0x1"},
	}, knobs)
	assert.Equal(t, []string{"TXT", "VTd"}, tbl.Features.Features())

	_, ok = tbl.Features.Lookup("TXT", "Disable")
	assert.False(t, ok)
}

func TestParseDuplicateFeatureKnob(t *testing.T) {
	_, err := parseString(t, `
sheets:
  H2L: []
  L2PY: []
  Features:
    - [VTd, Enable, VTdSupport, "0x1"]
    - [VTd, Enable, VTdSupport, "0x0"]
  BiosMenu: []
`)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrDuplicateFeature, ce.Code)
	assert.Equal(t, 2, ce.Row)
}

func TestParseShortFeatureRow(t *testing.T) {
	_, err := parseString(t, `
sheets:
  H2L: []
  L2PY: []
  Features:
    - [VTd, Enable]
  BiosMenu: []
`)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrBadRow, ce.Code)
}

func TestParseBiosMenu(t *testing.T) {
	tbl, err := parseString(t, `
sheets:
  H2L: []
  L2PY: []
  Features: []
  BiosMenu:
    - [SecureBoot, Secure Boot Mode, EDKII Menu, Secure Boot Configuration]
    - [WakeOnLan, Wake On Lan Support, EDKII Menu, "", Platform Configuration]
`)
	require.NoError(t, err)

	k, ok := tbl.BiosMenu.Lookup("SecureBoot")
	require.True(t, ok)
	assert.Equal(t, "Secure Boot Mode", k.Name)
	assert.Equal(t, []string{"EDKII Menu", "Secure Boot Configuration"}, k.Path)
	assert.Equal(t, "menu_knob_secureboot", k.VarName())

	w, _ := tbl.BiosMenu.Lookup("WakeOnLan")
	assert.Equal(t, []string{"EDKII Menu", "Platform Configuration"}, w.Path)
	assert.Equal(t, 2, tbl.BiosMenu.Len())
}

func TestParseDuplicateMenuID(t *testing.T) {
	_, err := parseString(t, `
sheets:
  H2L: []
  L2PY: []
  Features: []
  BiosMenu:
    - [SecureBoot, A, Menu]
    - [SecureBoot, B, Menu]
`)
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrDuplicateMenu, ce.Code)
}

func TestParseNormalizesCells(t *testing.T) {
	// NBSP inside the pattern and a zero-width space in the knob name.
	tbl, err := parseString(t, "sheets:\n  H2L: []\n  L2PY:\n    - [\"Wait\u00a0for: OS\", \"x\"]\n"+
		"  Features:\n    - [VTd, Enable, \"VTd\u200bSupport\", \"0x1\"]\n  BiosMenu: []\n")
	require.NoError(t, err)

	assert.Equal(t, "Wait for", tbl.L2PY[0].Op)
	knobs, ok := tbl.Features.Lookup("VTd", "Enable")
	require.True(t, ok)
	assert.Equal(t, "VTdSupport", knobs[0].Name)
}

func TestFingerprintIgnoresFormatting(t *testing.T) {
	a, err := parseString(t, `
sheets:
  H2L: [["Reset to: OS", "Reset: warm"]]
  L2PY: []
  Features: []
  BiosMenu: []
`)
	require.NoError(t, err)
	b, err := parseString(t, `
sheets:
  BiosMenu: []
  Features: []
  L2PY: []
  H2L:
    - - "Reset to: OS"
      - "Reset: warm"
`)
	require.NoError(t, err)

	assert.NotEmpty(t, a.Fingerprint())
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrFileNotFound, ce.Code)
}

func TestDefaultTable(t *testing.T) {
	tbl, err := Default()
	require.NoError(t, err)

	assert.NotEmpty(t, tbl.H2L)
	assert.NotEmpty(t, tbl.L2PY)
	assert.True(t, tbl.BiosMenu.Has("SecureBoot"))

	knobs, ok := tbl.Features.Lookup("VTd", "Enable")
	require.True(t, ok)
	assert.Equal(t, []Knob{{Name: "VTdSupport", Value: "0x1"}}, knobs)
}

func TestResolvePrefersExplicitPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yaml")
	require.NoError(t, os.WriteFile(path, DefaultWorkbook(), 0o644))

	got, err := Resolve(path)
	require.NoError(t, err)
	assert.Equal(t, path, got)
}

func TestResolveFallsBackToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "custom.yaml"), DefaultWorkbook(), 0o644))
	t.Chdir(dir)

	got, err := Resolve(filepath.Join("elsewhere", "custom.yaml"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, "custom.yaml"))
	assert.Equal(t, dir, filepath.Dir(got))
}

func TestResolveNotFound(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Resolve("missing-table.yaml")
	var ce *ConfigError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, ErrFileNotFound, ce.Code)
}

func TestCacheLoadsOnce(t *testing.T) {
	var loads atomic.Int32
	cache := NewCacheWith(func(string) (*Table, error) {
		loads.Add(1)
		return Default()
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tbl, err := cache.Get("pvl.yaml")
			assert.NoError(t, err)
			assert.NotNil(t, tbl)
		}()
	}
	wg.Wait()

	_, err := cache.Get("pvl.yaml")
	require.NoError(t, err)
	assert.Equal(t, int32(1), loads.Load())
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	var loads atomic.Int32
	cache := NewCacheWith(func(string) (*Table, error) {
		if loads.Add(1) == 1 {
			return nil, errors.New("transient")
		}
		return Default()
	})

	_, err := cache.Get("x")
	require.Error(t, err)
	_, err = cache.Get("x")
	require.NoError(t, err)
}
