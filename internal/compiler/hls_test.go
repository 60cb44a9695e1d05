package compiler

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pvl/internal/sentence"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

func defaultTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.Default()
	require.NoError(t, err)
	return tbl
}

func newHLS(t *testing.T, opts HLSOptions) (*HLSTranslator, *sysvar.State) {
	t.Helper()
	st := sysvar.New()
	h, err := NewHLSTranslator(defaultTable(t), st, opts)
	require.NoError(t, err)
	return h, st
}

func TestHLS_BootToOS(t *testing.T) {
	h, st := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{"Boot to: OS"}, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"# Boot to OS",
		"Switch AC: OFF",
		"Wait: 10",
		"Switch AC: ON",
		"Wait for: OS",
		"Environment=OS",
		"",
	}, out)
	assert.Equal(t, sysvar.EnvOS, st.Environment)
}

func TestHLS_BootToOSFamily(t *testing.T) {
	h, st := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{"Boot to: Linux"}, "case.tcd")
	require.NoError(t, err)

	assert.Contains(t, out, "OS=Linux")
	assert.Equal(t, sysvar.EnvOS, st.Environment)
	assert.Equal(t, sysvar.OSLinux, st.OS)
}

func TestHLS_FirstMatchSkipsToLaterRow(t *testing.T) {
	h, _ := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{"Boot to: Windows, 900"}, "case.tcd")
	require.NoError(t, err)

	assert.Contains(t, out, "Wait for: OS, 900")
	assert.Contains(t, out, "OS=Windows")
}

func TestHLS_ResetToSetsEnvironment(t *testing.T) {
	h, st := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{"Log: start", "Reset to: UEFI SHELL", "Log: done"}, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Log: start",
		"",
		"# Reset to UEFI SHELL",
		"Reset: warm",
		"Wait for: UEFI SHELL",
		`Environment="UEFI SHELL"`,
		"",
		"Log: done",
	}, out)
	assert.Equal(t, sysvar.EnvUEFIShell, st.Environment)
}

func TestHLS_BlankAfterBlockCollapses(t *testing.T) {
	h, _ := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{"Reset to: OS", "", "", "Log: x"}, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, []string{"# Reset to OS", "Reset: warm", "Wait for: OS", "Environment=OS", "", "Log: x"}, out)
}

func TestHLS_SetFeature(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"pair", "Set Feature: VTd, Enable", "Set BIOS knob: VTdSupport=0x1"},
		{"assignment", "Set Feature: VTd=Disable", "Set BIOS knob: VTdSupport=0x0"},
		{"multiple knobs", "Set Feature: TXT, Enable", "Set BIOS knob: ProcessorLtsxEnable=0x1, ProcessorSmxEnable=0x1"},
		{"later wins", "Set Feature: VTd=Enable, VTd=Disable", "Set BIOS knob: VTdSupport=0x0"},
		{"quoted value", `Set Feature: SecureBoot="Standard"`, "Set BIOS knob: SecureBoot=Standard Mode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := newHLS(t, HLSOptions{})
			out, err := h.TranslateLines([]string{tt.line}, "case.tcd")
			require.NoError(t, err)
			assert.Equal(t, []string{tt.want}, out)
		})
	}
}

func TestHLS_SetFeatureUnknown(t *testing.T) {
	h, _ := newHLS(t, HLSOptions{})

	_, err := h.TranslateLines([]string{"Log: x", "Set Feature: VTd, Maybe"}, "case.tcd")
	require.Error(t, err)

	var te *TranslateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.Line)
	assert.Equal(t, "case.tcd", te.Label)

	var fe *FeatureError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "VTd", fe.Feature)
	assert.Equal(t, "Maybe", fe.Value)
}

func TestHLS_PassThrough(t *testing.T) {
	h, _ := newHLS(t, HLSOptions{})

	in := []string{
		"# comment",
		"PREPARE: setup",
		"STEP: 1, first",
		"Repeat: 2",
		"    Wait: 5",
		"End:",
		"tcd.log('raw code')",
		"Bot to: OS",
		"Reset to: NOWHERE",
	}
	out, err := h.TranslateLines(in, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"# comment",
		"PREPARE: setup",
		"STEP: 1, first",
		"Repeat: 2",
		"    Wait: 5",
		"End:",
		"# tcd.log('raw code')",
		"# Bot to: OS",
		"# Reset to: NOWHERE",
	}, out)
}

func TestHLS_TextWithoutOperationIsCommentedOut(t *testing.T) {
	h, _ := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{"STEP: 1", "Boot to OS", "    Wait 5"}, "case.tcd")
	require.NoError(t, err)
	assert.Equal(t, []string{"STEP: 1", "# Boot to OS", "    # Wait 5"}, out)
}

func TestBuild_TextWithoutOperationIsNotCode(t *testing.T) {
	_, script, err := Build(defaultTable(t), []string{"STEP: 1, boot", "Boot to OS"}, "case.tcd", BuildOptions{})
	require.NoError(t, err)

	for _, line := range script {
		if strings.TrimSpace(line) == "Boot to OS" {
			t.Fatalf("prose emitted as a statement:\n%s", strings.Join(script, "\n"))
		}
	}
	assert.Contains(t, strings.Join(script, "\n"), "# Boot to OS")
}

func TestHLS_IndentedHighLevelStep(t *testing.T) {
	h, _ := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{"Repeat: 2", "    Reset to: OS", "End:"}, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"Repeat: 2",
		"",
		"    # Reset to OS",
		"    Reset: warm",
		"    Wait for: OS",
		"    Environment=OS",
		"",
		"End:",
	}, out)
}

func TestHLS_Assignments(t *testing.T) {
	h, st := newHLS(t, HLSOptions{})

	out, err := h.TranslateLines([]string{`Environment="UEFI SHELL"`, "Environment=Mars", "count=3"}, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, []string{`Environment="UEFI SHELL"`, "Environment=Mars", "count=3"}, out)
	assert.Equal(t, sysvar.EnvUEFIShell, st.Environment, "invalid value keeps the previous one")
}

func TestHLS_ItpLibOutsidePrepare(t *testing.T) {
	h, st := newHLS(t, HLSOptions{})
	st.CheckStage = true

	_, err := h.TranslateLines([]string{"PREPARE: x", "ItpLib=cscripts", "STEP: 1", "ItpLib=pythonsv"}, "case.tcd")
	require.Error(t, err)
	assert.True(t, sysvar.IsPhaseError(err))
	assert.Equal(t, sysvar.ItpCScripts, st.ItpLib)
}

func TestHLS_BootToNotAllowedInSteps(t *testing.T) {
	h, st := newHLS(t, HLSOptions{})
	st.CheckStage = true

	_, err := h.TranslateLines([]string{"PREPARE: x", "Boot to: OS"}, "case.tcd")
	require.NoError(t, err)

	_, err = h.TranslateLines([]string{"STEP: 1", "Boot to: OS"}, "case.tcd")
	require.Error(t, err)
	assert.True(t, sentence.IsPolicyError(err))
}

func TestHLS_RunTCDBlock(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "warm"+BlockExt), []byte("Reset to: OS\nLog: after reset\n\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"+BlockExt), []byte("# nothing\n\n"), 0o644))

	h, st := newHLS(t, HLSOptions{BlocksDir: dir})

	out, err := h.TranslateLines([]string{"Run TCD Block: warm, 2"}, "case.tcd")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"### Call TCDB warm Start",
		"Repeat: 2",
		"    # Reset to OS",
		"    Reset: warm",
		"    Wait for: OS",
		"    Environment=OS",
		"",
		"    Log: after reset",
		"End:",
		"### Call TCDB warm End",
		"",
	}, out)
	assert.Equal(t, sysvar.EnvOS, st.Environment, "block shares the caller's state")

	out, err = h.TranslateLines([]string{"Run TCD Block: empty"}, "case.tcd")
	require.NoError(t, err)
	assert.Equal(t, []string{"# skip empty TCDB empty", ""}, out)
}

func TestHLS_RunTCDBlockCycle(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a"+BlockExt), []byte("Run TCD Block: b\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b"+BlockExt), []byte("Run TCD Block: a\n"), 0o644))

	h, _ := newHLS(t, HLSOptions{BlocksDir: dir})
	_, err := h.TranslateLines([]string{"Run TCD Block: a"}, "case.tcd")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> b -> a")
}

func TestHLS_RunTCDBlockArguments(t *testing.T) {
	tests := []struct {
		args    []string
		name    string
		repeat  int
		wantErr bool
	}{
		{args: []string{"x"}, name: "x", repeat: 1},
		{args: []string{"x", "3"}, name: "x", repeat: 3},
		{args: []string{"x", "repeat=4"}, name: "x", repeat: 4},
		{args: []string{"x", "0"}, wantErr: true},
		{args: []string{"x", "count=2"}, wantErr: true},
		{args: []string{"x", "1", "2"}, wantErr: true},
		{args: nil, wantErr: true},
	}
	for _, tt := range tests {
		name, repeat, err := parseBlockArgs(tt.args)
		if tt.wantErr {
			assert.Error(t, err, "%v", tt.args)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.name, name)
		assert.Equal(t, tt.repeat, repeat)
	}
}

// Structural markers survive lowering, so translating twice changes
// nothing the second time.
func TestHLS_Idempotent(t *testing.T) {
	in := []string{
		"PREPARE: setup",
		"Boot to: OS",
		"STEP: 1, run",
		"Set Feature: VTd, Enable",
		"Repeat: 3",
		"    Execute Command: nocheck, ls",
		"End:",
	}
	h1, _ := newHLS(t, HLSOptions{})
	once, err := h1.TranslateLines(in, "case.tcd")
	require.NoError(t, err)

	h2, _ := newHLS(t, HLSOptions{})
	twice, err := h2.TranslateLines(once, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, once, twice)
	assert.Equal(t, countMarkers(in), countMarkers(once))
}

// Translation depends only on the input and a fresh state: the same case
// file translated twice yields identical output and final variables.
func TestHLS_DeterministicWithFreshState(t *testing.T) {
	in := []string{
		"PREPARE: setup",
		"Boot to: Linux",
		`Environment="UEFI SHELL"`,
		"STEP: 1, run",
		"Set Feature: VTd, Enable",
		"Reset to: OS",
		"Repeat: 2",
		"    Execute Command: nocheck, ls",
		"End:",
	}
	h1, st1 := newHLS(t, HLSOptions{})
	first, err := h1.TranslateLines(in, "case.tcd")
	require.NoError(t, err)

	h2, st2 := newHLS(t, HLSOptions{})
	second, err := h2.TranslateLines(in, "case.tcd")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, st1.Environment, st2.Environment)
	assert.Equal(t, st1.OS, st2.OS)
}

func countMarkers(lines []string) map[string]int {
	counts := make(map[string]int)
	for _, l := range lines {
		for _, m := range []string{"PREPARE:", "STEP:", "Repeat:", "End:"} {
			if len(l) >= len(m) && trimmedHasPrefix(l, m) {
				counts[m]++
			}
		}
	}
	return counts
}

func trimmedHasPrefix(l, prefix string) bool {
	for len(l) > 0 && (l[0] == ' ' || l[0] == '\t') {
		l = l[1:]
	}
	return len(l) >= len(prefix) && l[:len(prefix)] == prefix
}

func TestSuggestOp(t *testing.T) {
	assert.Equal(t, "Boot to", suggestOp("Bot to"))
	assert.Equal(t, "Execute Command", suggestOp("execute command"))
	assert.Equal(t, "", suggestOp("completely different"))
}
