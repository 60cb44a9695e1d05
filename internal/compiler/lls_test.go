package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pvl/internal/sysvar"
)

func newGenerator(t *testing.T) (*CodeGenerator, *sysvar.State) {
	t.Helper()
	st := sysvar.New()
	g, err := NewCodeGenerator(defaultTable(t), st)
	require.NoError(t, err)
	g.SetLabel("case.lls")
	return g, st
}

func TestGenerator_Sections(t *testing.T) {
	g, st := newGenerator(t)

	out, err := g.TranslateLines([]string{
		"PREPARE: setup",
		"Environment=OS",
		"STEP: 1, check",
		"Execute Command: nocheck, timeout=20, echo 'hi'",
		"Repeat: 2",
		"    Wait: 5",
		"End:",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		bannerRule,
		"# Pre-Condition Section",
		bannerRule,
		"#",
		`if tcd.prepare("setup"):`,
		`    tcd.environment = "OS"`,
		bannerRule,
		"# Steps Section",
		bannerRule,
		"## 1",
		`if tcd.step("check"):`,
		`    sutos.execute_cmd(sut, f'echo \'hi\'', timeout=20, no_check=True)`,
		"    for i in range(0, 2):",
		"        tcd.sleep(5)",
	}, out)
	assert.Equal(t, sysvar.EnvOS, st.Environment)
	assert.False(t, st.InPrepare)
}

func TestGenerator_StepDescriptionFromComment(t *testing.T) {
	g, _ := newGenerator(t)

	out, err := g.TranslateLines([]string{"STEP: 3", "# verify boot", `Log: say "hi"`})
	require.NoError(t, err)

	assert.Equal(t, []string{
		bannerRule,
		"# Steps Section",
		bannerRule,
		"## 3",
		`if tcd.step("verify boot"):`,
		"    # verify boot",
		`    tcd.log("say \"hi\"")`,
	}, out)
}

func TestGenerator_EmptyStepGetsPass(t *testing.T) {
	g, _ := newGenerator(t)

	out, err := g.TranslateLines([]string{"STEP: 1"})
	require.NoError(t, err)
	assert.Equal(t, []string{bannerRule, "# Steps Section", bannerRule, "## 1", `if tcd.step("Step 1"):`, "    pass"}, out)
}

func TestGenerator_EnvironmentPrefix(t *testing.T) {
	g, _ := newGenerator(t)

	out, err := g.TranslateLines([]string{
		`Environment="UEFI SHELL"`,
		"Execute Command: ls",
		"Execute Host Command: timeout=30, ls",
		"Execute ITP Command: nocheck, itp.halt()",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		`tcd.environment = "UEFI SHELL"`,
		`UefiShell.execute_cmd(sut, f'ls')`,
		`hostos.execute_cmd(f'ls', timeout=30)`,
		`tcd.itp.execute(f'itp.halt()', no_check=True)`,
	}, out)
}

func TestGenerator_CommandOptionsWithoutCommand(t *testing.T) {
	for _, line := range []string{
		"Execute Command: timeout=20",
		"Execute Host Command: nocheck",
		"Execute ITP Command: nocheck, timeout=5",
	} {
		g, _ := newGenerator(t)
		_, err := g.TranslateLines([]string{"Environment=OS", line})
		require.Error(t, err, line)
		assert.True(t, IsTranslateError(err), line)
	}
}

func TestGenerator_ExecuteCommandNeedsShell(t *testing.T) {
	for _, env := range []string{"", `Environment="BIOS MENU"`} {
		g, _ := newGenerator(t)
		lines := []string{"Execute Command: ls"}
		if env != "" {
			lines = append([]string{env}, lines...)
		}

		_, err := g.TranslateLines(lines)
		require.Error(t, err)

		var ee *EnvironmentError
		require.True(t, errors.As(err, &ee), "%v", err)
		assert.True(t, IsTranslateError(err))
	}
}

func TestGenerator_Assignments(t *testing.T) {
	g, st := newGenerator(t)

	out, err := g.TranslateLines([]string{"count=3", "OS=Solaris", "OS=linux", "ItpLib=cscript"})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"count = 3",
		"OS = Solaris",
		`tcd.os = "linux"`,
		`tcd.itplib = "cscript"`,
	}, out)
	assert.Equal(t, sysvar.OSLinux, st.OS)
	assert.Equal(t, sysvar.ItpCScripts, st.ItpLib)
}

func TestGenerator_UnknownLinesKept(t *testing.T) {
	g, _ := newGenerator(t)

	out, err := g.TranslateLines([]string{"Frobnicate: x", "print('x')"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Frobnicate: x", "print('x')"}, out)
}

func TestGenerator_Errors(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		code  string
		line  int
	}{
		{"repeat without end", []string{"STEP: 1", "Repeat: 2", "Wait: 1"}, ErrUnmatchedRepeat, 2},
		{"end without repeat", []string{"STEP: 1", "Log: x", "End:"}, ErrUnmatchedEnd, 3},
		{"empty repeat", []string{"STEP: 1", "Repeat: 2", "# nothing", "End:"}, ErrEmptyRepeat, 2},
		{"prepare after step", []string{"STEP: 1", "PREPARE: late"}, ErrPrepareAfterStep, 2},
		{"bad count", []string{"STEP: 1", "Repeat: zero", "Wait: 1", "End:"}, ErrBadRepeatCount, 2},
		{"negative count", []string{"Repeat: -1", "Wait: 1", "End:"}, ErrBadRepeatCount, 1},
		{"nested unmatched", []string{"Repeat: 2", "Repeat: 3", "Wait: 1", "End:"}, ErrUnmatchedRepeat, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _ := newGenerator(t)
			_, err := g.TranslateLines(tt.lines)
			require.Error(t, err)

			var se *StructureError
			require.True(t, errors.As(err, &se), "%v", err)
			assert.Equal(t, tt.code, se.Code)
			assert.Equal(t, tt.line, se.Line)
		})
	}
}

func TestGenerator_NestedRepeat(t *testing.T) {
	g, _ := newGenerator(t)

	out, err := g.TranslateLines([]string{"Repeat: 2", "Repeat: 3", "Switch DC: OFF", "End:", "End:"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"for i in range(0, 2):",
		"    for i in range(0, 3):",
		"        sut.dc_off()",
	}, out)
}

func TestGenerator_RejectsHighLevelSteps(t *testing.T) {
	g, _ := newGenerator(t)

	_, err := g.TranslateLines([]string{"Log: x", "Boot to: OS"})
	require.Error(t, err)

	var te *TranslateError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 2, te.Line)
	assert.Equal(t, "case.lls", te.Label)
	assert.Contains(t, err.Error(), "must be lowered first")
}

func TestGenerator_NoMatchingRule(t *testing.T) {
	g, _ := newGenerator(t)

	_, err := g.TranslateLines([]string{"Switch AC: MAYBE"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot parse")
}

func TestGenerator_WaitForVariants(t *testing.T) {
	g, _ := newGenerator(t)

	out, err := g.TranslateLines([]string{"Wait for: S5", "Wait for: OS, 600", "Wait for: BIOS MENU"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		`tcd.wait_and_expect("wait for power state S5", timeout=60*10, function=lambda: sut.check_power_state("S5"))`,
		`tcd.wait_and_expect("wait for OS", timeout=600, function=lambda: tcd.check_environment("OS"))`,
		`tcd.wait_and_expect("wait for entering BIOS setup menu", timeout=60*60, function=sut.bios.in_bios_setup)`,
	}, out)
}
