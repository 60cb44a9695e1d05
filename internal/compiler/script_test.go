package compiler

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pvl/internal/ir"
)

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func joinLines(lines []string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

const vtdSmoke = `ID: 16015012345
TITLE: VTd smoke

PREPARE: boot
Boot to: OS
STEP: 1, enable VTd
Set Feature: VTd, Enable
Execute Command: dmesg | grep DMAR
`

func TestBuild_Golden(t *testing.T) {
	meta, script, err := Build(defaultTable(t), ir.SplitLines(vtdSmoke), "vtd.tcd", BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, "16015012345", meta.ID)
	assert.Equal(t, "VTd smoke", meta.Title)
	newGolden(t).Assert(t, "vtd_smoke", joinLines(script))
}

func TestBuild_Deterministic(t *testing.T) {
	tbl := defaultTable(t)
	_, a, err := Build(tbl, ir.SplitLines(vtdSmoke), "vtd.tcd", BuildOptions{})
	require.NoError(t, err)
	_, b, err := Build(tbl, ir.SplitLines(vtdSmoke), "vtd.tcd", BuildOptions{})
	require.NoError(t, err)

	assert.Equal(t, ir.ScriptFingerprint(a), ir.ScriptFingerprint(b))
}

func TestSplitPrefix(t *testing.T) {
	meta, rest := SplitPrefix([]string{"ID: 1", "", "DOMAIN: pm", "TITLE: t: with colon", "STEP: 1"})
	assert.Equal(t, ScriptMeta{ID: "1", Title: "t: with colon", Domain: "pm"}, meta)
	assert.Equal(t, []string{"STEP: 1"}, rest)
	assert.Equal(t, []string{"ID: 1", "TITLE: t: with colon", "DOMAIN: pm"}, meta.Lines())

	meta, rest = SplitPrefix([]string{"Log: x"})
	assert.Equal(t, ScriptMeta{}, meta)
	assert.Equal(t, []string{"Log: x"}, rest)

	meta, rest = SplitPrefix([]string{"ID: only"})
	assert.Equal(t, "only", meta.ID)
	assert.Empty(t, rest)
}

func TestWrapScript_Layout(t *testing.T) {
	out := WrapScript([]string{"tcd.log(\"x\")"}, ScriptMeta{})

	assert.Equal(t, "# Tool Version ["+ir.ToolVersion+"]", out[0])
	assert.Equal(t, "CASE_DESC = [", out[1])
	assert.Equal(t, `    "it is a python script generated from validation language"`, out[2])
	assert.Equal(t, "]", out[3])
	assert.Contains(t, out, "def test_steps(tcd):")
	assert.Contains(t, out, `    tcd.log("x")`)
	assert.Equal(t, "    exit(Result.returncode)", out[len(out)-1])
}

func TestBiosMenuDefinitions(t *testing.T) {
	tbl := defaultTable(t)
	out := BiosMenuDefinitions(tbl)

	assert.Contains(t, out, "# Table Fingerprint ["+tbl.Fingerprint()+"]")
	assert.Contains(t, out, "from dtaf_core.lib.tklib.infra.bios.bios import BIOS_KNOB_SERIAL")

	text := strings.Join(out, "\n")
	assert.Contains(t, text, strings.Join([]string{
		"menu_knob_wakeonlan = BIOS_KNOB_SERIAL(",
		"    name=r'Wake On Lan Support',",
		"    path=['EDKII Menu', 'Platform Configuration', 'Miscellaneous Configuration']",
		")",
	}, "\n"))
	assert.Equal(t, tbl.BiosMenu.Len(), strings.Count(text, "= BIOS_KNOB_SERIAL("))
}
