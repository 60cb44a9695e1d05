package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/table"
)

// Prefix keys a TCD file may start with.
const (
	PrefixID     = "ID"
	PrefixTitle  = "TITLE"
	PrefixDomain = "DOMAIN"
)

// ScriptMeta describes the test case a script is generated for.
type ScriptMeta struct {
	ID     string
	Title  string
	Domain string
}

// Lines renders the metadata as "KEY: value" lines, skipping empty fields.
func (m ScriptMeta) Lines() []string {
	var out []string
	for _, kv := range [][2]string{{PrefixID, m.ID}, {PrefixTitle, m.Title}, {PrefixDomain, m.Domain}} {
		if kv[1] != "" {
			out = append(out, kv[0]+": "+kv[1])
		}
	}
	return out
}

// SplitPrefix removes the leading ID/TITLE/DOMAIN lines (blank lines
// between them are skipped) and returns them with the remaining lines.
func SplitPrefix(lines []string) (ScriptMeta, []string) {
	var meta ScriptMeta
	for i, raw := range lines {
		t := strings.TrimSpace(raw)
		if t == "" {
			continue
		}
		key, value, ok := strings.Cut(t, ":")
		if !ok {
			return meta, lines[i:]
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case PrefixID:
			meta.ID = value
		case PrefixTitle:
			meta.Title = value
		case PrefixDomain:
			meta.Domain = value
		default:
			return meta, lines[i:]
		}
	}
	return meta, nil
}

var scriptImports = []string{
	"import traceback",
	"",
	"from dtaf_core.lib.tklib.basic.testcase import Result",
	"from dtaf_core.lib.tklib.steps_lib.vl.vltcd import *",
	"from dtaf_core.lib.tklib.steps_lib.uefi_scene import UefiShell, BIOS_Menu",
	"from dtaf_core.lib.tklib.steps_lib.os_scene import GenericOS",
	"from dtaf_core.lib.tklib.steps_lib.prepare.boot_to import boot_to",
	"from plat_feature_config import *",
	"",
	"",
	"def test_steps(tcd):",
	"    sut = tcd.sut",
	"    sutos = tcd.sut.sutos",
	"    assert (issubclass(sutos, GenericOS))",
	"    hostos = tcd.hostos",
	"    tools = get_tool(tcd.sut)",
	"    bmc = get_bmc_info()",
}

var scriptTrailer = []string{
	"def clean_up(sut):",
	"    pass",
	"",
	"",
	"def test_main():",
	"    tcd = TestCase(globals(), locals())",
	"    try:",
	"        tcd.start(CASE_DESC)",
	"        test_steps(tcd)",
	"",
	"    except Exception as e:",
	"        Result.get_exception(e, str(traceback.format_exc()))",
	"    finally:",
	"        tcd.end()",
	"        clean_up(tcd)",
	"",
	"",
	"if __name__ == '__main__':",
	"    test_main()",
	"    exit(Result.returncode)",
}

// Script translates lines and wraps the body in the fixed script header,
// import preamble and trailer.
func (g *CodeGenerator) Script(lines []string, meta ScriptMeta) ([]string, error) {
	body, err := g.TranslateLines(lines)
	if err != nil {
		return nil, err
	}
	return WrapScript(body, meta), nil
}

// WrapScript places a translated body inside the test function.
func WrapScript(body []string, meta ScriptMeta) []string {
	out := []string{
		fmt.Sprintf("# Tool Version [%s]", ir.ToolVersion),
		"CASE_DESC = [",
	}
	desc := []string{`"it is a python script generated from validation language"`}
	for _, l := range meta.Lines() {
		desc = append(desc, `"`+pyQuote(l)+`"`)
	}
	for i, d := range desc {
		if i < len(desc)-1 {
			d += ","
		}
		out = append(out, indentUnit+d)
	}
	out = append(out, "]", "")
	out = append(out, scriptImports...)
	out = append(out, "", "")

	header := []string{fmt.Sprintf("# Tool Version [%s]", ir.ToolVersion)}
	for _, l := range meta.Lines() {
		header = append(header, "#"+l)
	}
	header = append(header, "")
	out = append(out, indent(header, 1)...)
	out = append(out, indent(body, 1)...)
	out = append(out, "", "")
	return append(out, scriptTrailer...)
}

// BiosMenuDefinitions generates the knob definitions a script needs for
// BIOS-menu-only knobs: one menu_knob_<id> per BiosMenu row.
func BiosMenuDefinitions(tbl *table.Table) []string {
	out := []string{
		fmt.Sprintf("# Tool Version [%s]", ir.ToolVersion),
		fmt.Sprintf("# this is generated code from validation language mapping table (%s)", tbl.Source),
		fmt.Sprintf("# knobs for bios setup menu only in %q tab", table.SheetBiosMenu),
		fmt.Sprintf("# Table Fingerprint [%s]", tbl.Fingerprint()),
		"",
		"from dtaf_core.lib.tklib.infra.bios.bios import BIOS_KNOB_SERIAL",
		"",
		"",
	}
	for _, k := range tbl.BiosMenu.Knobs() {
		path := make([]string, len(k.Path))
		for i, p := range k.Path {
			path[i] = "'" + strings.ReplaceAll(p, "'", `\'`) + "'"
		}
		out = append(out,
			k.VarName()+" = BIOS_KNOB_SERIAL(",
			indentUnit+"name="+pyRaw(k.Name)+",",
			indentUnit+"path=["+strings.Join(path, ", ")+"]",
			")",
			"",
		)
	}
	return out
}
