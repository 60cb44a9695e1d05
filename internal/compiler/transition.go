package compiler

import "github.com/roach88/pvl/internal/sysvar"

type envPair struct {
	from, to sysvar.Environment
}

// transitions is the fixed Environment transition table. There is no
// path search: a pair that is not listed has no code.
var transitions = map[envPair][]string{
	{sysvar.EnvOS, sysvar.EnvUEFIShell}:       {"sutos.reset_to_uefi_shell(sut)"},
	{sysvar.EnvOS, sysvar.EnvBIOSMenu}:        {"sutos.reset_to_bios_menu(sut)"},
	{sysvar.EnvUEFIShell, sysvar.EnvOS}:       {"UefiShell.reset_to_os(sut)"},
	{sysvar.EnvUEFIShell, sysvar.EnvBIOSMenu}: {"UefiShell.reset_to_bios_menu(sut)"},
	{sysvar.EnvBIOSMenu, sysvar.EnvOS}:        {"BIOS_Menu.continue_to_os(sut)"},
	{sysvar.EnvBIOSMenu, sysvar.EnvUEFIShell}: {"BIOS_Menu.enter_uefi_shell(sut)"},
}

var resetCycles = map[sysvar.Environment]string{
	sysvar.EnvOS:        "sutos.reset_cycle_step(sut)",
	sysvar.EnvUEFIShell: "UefiShell.reset_cycle_step(sut)",
	sysvar.EnvBIOSMenu:  "BIOS_Menu.reset_cycle_step(sut)",
}

// Transition returns the code moving the device from one Environment to
// another. The identity pair is a no-op and returns no lines. Unset
// environments and unlisted pairs fail.
func Transition(from, to sysvar.Environment) ([]string, error) {
	if from == sysvar.EnvUnset || to == sysvar.EnvUnset {
		return nil, &TransitionError{From: from, To: to}
	}
	if from == to {
		return nil, nil
	}
	code, ok := transitions[envPair{from, to}]
	if !ok {
		return nil, &TransitionError{From: from, To: to}
	}
	return append([]string(nil), code...), nil
}

// ResetCycle returns the code that power cycles the device and comes back
// to the same Environment.
func ResetCycle(env sysvar.Environment) ([]string, error) {
	code, ok := resetCycles[env]
	if !ok {
		return nil, &TransitionError{From: env, To: env}
	}
	return []string{code}, nil
}
