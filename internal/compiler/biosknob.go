package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/pvl/internal/ir"
	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

// MenuSetting is a knob value that can only be set in the BIOS setup menu.
type MenuSetting struct {
	Knob  table.MenuKnob
	Value string
}

// KnobPlan is a Set BIOS knob request split by access path.
type KnobPlan struct {
	CLI  []table.Knob
	Menu []MenuSetting
}

// CLIString renders the CLI knobs as "name=value, name=value".
func (p KnobPlan) CLIString() string {
	parts := make([]string, len(p.CLI))
	for i, k := range p.CLI {
		parts[i] = k.String()
	}
	return strings.Join(parts, ", ")
}

// PlanKnobs partitions name=value arguments into CLI-settable knobs and
// knobs listed in the BIOS menu table.
func PlanKnobs(args []string, menu *table.MenuTable) (KnobPlan, error) {
	var plan KnobPlan
	for _, arg := range args {
		name, value, ok := ir.ParseAssignment(arg)
		if !ok {
			return KnobPlan{}, fmt.Errorf("wrong parameter for %s: %q", ir.OpSetBIOSKnob, arg)
		}
		if mk, isMenu := menu.Lookup(name); isMenu {
			plan.Menu = append(plan.Menu, MenuSetting{Knob: mk, Value: ir.Unquote(value)})
			continue
		}
		plan.CLI = append(plan.CLI, table.Knob{Name: name, Value: value})
	}
	if len(plan.CLI)+len(plan.Menu) == 0 {
		return KnobPlan{}, ErrNoKnobs
	}
	return plan, nil
}

func xmlcliPrefix(env sysvar.Environment) (string, error) {
	switch env {
	case sysvar.EnvOS:
		return "sut.xmlcli_os", nil
	case sysvar.EnvUEFIShell:
		return "sut.xmlcli_uefi", nil
	}
	return "", &EnvironmentError{Op: ir.OpSetBIOSKnob.String(), Env: env}
}

// biosKnobCode generates the check-then-set-then-verify sequence. CLI
// knobs are set through xmlcli from the current Environment. Menu knobs
// need a trip to the BIOS setup menu and back; when both kinds are
// present the CLI knobs are verified again after the trip.
func biosKnobCode(args []string, st *sysvar.State, menu *table.MenuTable) ([]string, error) {
	plan, err := PlanKnobs(args, menu)
	if err != nil {
		return nil, err
	}
	env := st.Environment
	prefix, err := xmlcliPrefix(env)
	if err != nil {
		return nil, err
	}

	out := []string{fmt.Sprintf("## %s: %s", ir.OpSetBIOSKnob, strings.Join(args, ", "))}

	cli := plan.CLIString()
	if len(plan.CLI) > 0 {
		out = append(out, fmt.Sprintf(`set_cli = not %s.check_bios_knobs("%s")`, prefix, pyQuote(cli)))
		code := []string{fmt.Sprintf(`%s.set_bios_knobs("%s")`, prefix, pyQuote(cli))}
		if len(plan.Menu) == 0 {
			cycle, err := ResetCycle(env)
			if err != nil {
				return nil, err
			}
			code = append(code, cycle...)
			code = append(code, fmt.Sprintf(`tcd.expect("double check bios knobs", %s.check_bios_knobs("%s"))`, prefix, pyQuote(cli)))
		}
		out = append(out, ifBlock("set_cli", code)...)
	}

	if len(plan.Menu) > 0 {
		enter, err := Transition(env, sysvar.EnvBIOSMenu)
		if err != nil {
			return nil, err
		}
		out = append(out, enter...)

		changed := make([]string, len(plan.Menu))
		for i, m := range plan.Menu {
			changed[i] = fmt.Sprintf("changed_%d", i)
			out = append(out, fmt.Sprintf(`%s = sut.set_bios_knobs_menu(%s, "%s")`, changed[i], m.Knob.VarName(), pyQuote(m.Value)))
		}

		check, err := ResetCycle(sysvar.EnvBIOSMenu)
		if err != nil {
			return nil, err
		}
		for _, m := range plan.Menu {
			check = append(check, fmt.Sprintf(`tcd.expect("%s/%s is %s", sut.check_bios_knobs_menu(%s, "%s"))`,
				m.Knob.ID, m.Knob.VarName(), pyQuote(m.Value), m.Knob.VarName(), pyQuote(m.Value)))
		}
		out = append(out, ifBlock(andItems(changed), check)...)

		back, err := Transition(sysvar.EnvBIOSMenu, env)
		if err != nil {
			return nil, err
		}
		out = append(out, back...)

		if len(plan.CLI) > 0 {
			out = append(out, ifBlock("set_cli", []string{
				fmt.Sprintf(`tcd.expect("double check", %s.check_bios_knobs("%s"))`, prefix, pyQuote(cli)),
			})...)
		}
	}

	return append(out, ""), nil
}
