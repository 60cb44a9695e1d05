package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pvl/internal/sysvar"
)

func stateIn(env sysvar.Environment) *sysvar.State {
	st := sysvar.New()
	st.Environment = env
	return st
}

func TestPlanKnobs(t *testing.T) {
	menu := defaultTable(t).BiosMenu

	plan, err := PlanKnobs([]string{"VTdSupport=0x1", `SecureBoot="Custom Mode"`, "SncEn=0x0"}, menu)
	require.NoError(t, err)

	assert.Equal(t, "VTdSupport=0x1, SncEn=0x0", plan.CLIString())
	require.Len(t, plan.Menu, 1)
	assert.Equal(t, "SecureBoot", plan.Menu[0].Knob.ID)
	assert.Equal(t, "Custom Mode", plan.Menu[0].Value)

	_, err = PlanKnobs([]string{"bogus"}, menu)
	assert.ErrorContains(t, err, "wrong parameter")

	_, err = PlanKnobs(nil, menu)
	assert.ErrorIs(t, err, ErrNoKnobs)
}

func TestBiosKnobCode_CLIOnly(t *testing.T) {
	menu := defaultTable(t).BiosMenu

	out, err := biosKnobCode([]string{"VTdSupport=0x1"}, stateIn(sysvar.EnvOS), menu)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"## Set BIOS knob: VTdSupport=0x1",
		`set_cli = not sut.xmlcli_os.check_bios_knobs("VTdSupport=0x1")`,
		"if set_cli:",
		`    sut.xmlcli_os.set_bios_knobs("VTdSupport=0x1")`,
		"    sutos.reset_cycle_step(sut)",
		`    tcd.expect("double check bios knobs", sut.xmlcli_os.check_bios_knobs("VTdSupport=0x1"))`,
		"",
	}, out)
}

func TestBiosKnobCode_MenuOnly(t *testing.T) {
	menu := defaultTable(t).BiosMenu

	out, err := biosKnobCode([]string{`SecureBoot="Standard Mode"`}, stateIn(sysvar.EnvUEFIShell), menu)
	require.NoError(t, err)

	assert.Equal(t, []string{
		`## Set BIOS knob: SecureBoot="Standard Mode"`,
		"UefiShell.reset_to_bios_menu(sut)",
		`changed_0 = sut.set_bios_knobs_menu(menu_knob_secureboot, "Standard Mode")`,
		"if changed_0:",
		"    BIOS_Menu.reset_cycle_step(sut)",
		`    tcd.expect("SecureBoot/menu_knob_secureboot is Standard Mode", sut.check_bios_knobs_menu(menu_knob_secureboot, "Standard Mode"))`,
		"BIOS_Menu.enter_uefi_shell(sut)",
		"",
	}, out)
}

func TestBiosKnobCode_Mixed(t *testing.T) {
	menu := defaultTable(t).BiosMenu

	out, err := biosKnobCode([]string{"VTdSupport=0x1", "ShellTimeout=5", "WakeOnLan=1"}, stateIn(sysvar.EnvOS), menu)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"## Set BIOS knob: VTdSupport=0x1, ShellTimeout=5, WakeOnLan=1",
		`set_cli = not sut.xmlcli_os.check_bios_knobs("VTdSupport=0x1")`,
		"if set_cli:",
		`    sut.xmlcli_os.set_bios_knobs("VTdSupport=0x1")`,
		"sutos.reset_to_bios_menu(sut)",
		`changed_0 = sut.set_bios_knobs_menu(menu_knob_shelltimeout, "5")`,
		`changed_1 = sut.set_bios_knobs_menu(menu_knob_wakeonlan, "1")`,
		"if changed_0 and changed_1:",
		"    BIOS_Menu.reset_cycle_step(sut)",
		`    tcd.expect("ShellTimeout/menu_knob_shelltimeout is 5", sut.check_bios_knobs_menu(menu_knob_shelltimeout, "5"))`,
		`    tcd.expect("WakeOnLan/menu_knob_wakeonlan is 1", sut.check_bios_knobs_menu(menu_knob_wakeonlan, "1"))`,
		"BIOS_Menu.continue_to_os(sut)",
		"if set_cli:",
		`    tcd.expect("double check", sut.xmlcli_os.check_bios_knobs("VTdSupport=0x1"))`,
		"",
	}, out)
}

// The reset-and-verify block runs only when every menu knob changed.
func TestBiosKnobCode_MenuConditionJoinsWithAnd(t *testing.T) {
	menu := defaultTable(t).BiosMenu

	out, err := biosKnobCode([]string{"ShellTimeout=5", "WakeOnLan=1"}, stateIn(sysvar.EnvUEFIShell), menu)
	require.NoError(t, err)

	assert.Contains(t, out, "if changed_0 and changed_1:")
	for _, l := range out {
		assert.NotContains(t, l, " or ", "line %q", l)
	}
}

func TestBiosKnobCode_NeedsShellEnvironment(t *testing.T) {
	menu := defaultTable(t).BiosMenu

	for _, env := range []sysvar.Environment{sysvar.EnvUnset, sysvar.EnvBIOSMenu} {
		_, err := biosKnobCode([]string{"VTdSupport=0x1"}, stateIn(env), menu)
		var ee *EnvironmentError
		require.True(t, errors.As(err, &ee), "env %q", env)
		assert.Equal(t, env, ee.Env)
	}
}

// Set BIOS knob is reachable from a generated script through the
// generator's sentence.
func TestGenerator_SetBIOSKnob(t *testing.T) {
	g, _ := newGenerator(t)

	out, err := g.TranslateLines([]string{"Environment=OS", "Set BIOS knob: SncEn=0x1"})
	require.NoError(t, err)
	assert.Equal(t, `tcd.environment = "OS"`, out[0])
	assert.Equal(t, "## Set BIOS knob: SncEn=0x1", out[1])
	assert.Equal(t, "", out[len(out)-1])
}
