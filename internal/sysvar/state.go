// Package sysvar holds the System Variable State of a translation or
// execution session.
//
// A State is owned by exactly one translator or executor and is passed by
// pointer through every call that reads or mutates it. There is no
// package-level instance.
package sysvar

import (
	"errors"
	"fmt"
	"strings"
)

// Environment is the execution context of the device under test.
type Environment string

const (
	EnvUnset     Environment = ""
	EnvOS        Environment = "OS"
	EnvUEFIShell Environment = "UEFI SHELL"
	EnvBIOSMenu  Environment = "BIOS MENU"
)

// Environments lists the settable environments.
var Environments = []Environment{EnvOS, EnvUEFIShell, EnvBIOSMenu}

// ItpLib selects the debug-interface library.
type ItpLib string

const (
	ItpPythonSV ItpLib = "pythonsv"
	ItpCScripts ItpLib = "cscripts"
)

// OSFamily is the operating system booted on the device.
type OSFamily string

const (
	OSUnset   OSFamily = ""
	OSLinux   OSFamily = "Linux"
	OSWindows OSFamily = "Windows"
	OSESXi    OSFamily = "ESXi"
)

// Variable names accepted by Set.
const (
	VarEnvironment = "Environment"
	VarItpLib      = "ItpLib"
	VarOS          = "OS"
)

// ErrUnknownVariable is returned by Set for names that are not system
// variables. Callers treat such assignments as ordinary script variables.
var ErrUnknownVariable = errors.New("not a system variable")

// InvalidValueError reports an out-of-domain assignment. The previous
// value is kept.
type InvalidValueError struct {
	Name  string
	Value string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %q for system variable %s", e.Value, e.Name)
}

// PhaseError reports an assignment that is not allowed in the current phase.
type PhaseError struct {
	Name string
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s may only be changed in the precondition phase", e.Name)
}

// State is the mutable System Variable State.
type State struct {
	Environment Environment
	ItpLib      ItpLib
	OS          OSFamily

	// InPrepare is true while translating or executing the precondition
	// (PREPARE) section.
	InPrepare bool
	// CheckStage enables phase policy checks.
	CheckStage bool
}

// New returns a State in its session-start configuration.
func New() *State {
	return &State{ItpLib: ItpPythonSV}
}

// Reset restores the session-start configuration, keeping CheckStage.
func (s *State) Reset() {
	check := s.CheckStage
	*s = State{ItpLib: ItpPythonSV, CheckStage: check}
}

// Clone returns an independent copy.
func (s *State) Clone() *State {
	c := *s
	return &c
}

// IsSystemVariable reports whether name is handled by Set.
func IsSystemVariable(name string) bool {
	switch name {
	case VarEnvironment, VarItpLib, VarOS:
		return true
	}
	return false
}

// Set assigns a system variable after validating the value against the
// variable's domain. Quotes around value are stripped.
//
// Returns ErrUnknownVariable for names that are not system variables,
// *InvalidValueError for out-of-domain values and *PhaseError when
// ItpLib is changed outside the precondition phase under CheckStage.
// The state is unchanged whenever an error is returned.
func (s *State) Set(name, value string) error {
	value = unquote(value)

	switch name {
	case VarEnvironment:
		env, ok := ParseEnvironment(value)
		if !ok {
			return &InvalidValueError{Name: name, Value: value}
		}
		s.Environment = env
	case VarItpLib:
		lib, ok := ParseItpLib(value)
		if !ok {
			return &InvalidValueError{Name: name, Value: value}
		}
		if s.CheckStage && !s.InPrepare && lib != s.ItpLib {
			return &PhaseError{Name: name}
		}
		s.ItpLib = lib
	case VarOS:
		family, ok := ParseOSFamily(value)
		if !ok {
			return &InvalidValueError{Name: name, Value: value}
		}
		s.OS = family
	default:
		return ErrUnknownVariable
	}
	return nil
}

// ParseEnvironment resolves an environment name. Matching ignores case and
// treats '_' as a space, so "UEFI_SHELL" and "uefi shell" are accepted.
func ParseEnvironment(v string) (Environment, bool) {
	key := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(v), "_", " "))
	for _, env := range Environments {
		if string(env) == key {
			return env, true
		}
	}
	return EnvUnset, false
}

// ParseItpLib resolves a debug-interface library name. "cscript" is
// accepted as an alias of "cscripts".
func ParseItpLib(v string) (ItpLib, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "pythonsv":
		return ItpPythonSV, true
	case "cscripts", "cscript":
		return ItpCScripts, true
	}
	return "", false
}

// ParseOSFamily resolves an OS family name, ignoring case.
func ParseOSFamily(v string) (OSFamily, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "linux":
		return OSLinux, true
	case "windows":
		return OSWindows, true
	case "esxi", "vmware":
		return OSESXi, true
	}
	return OSUnset, false
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// IsInvalidValue reports whether err is an out-of-domain assignment.
func IsInvalidValue(err error) bool {
	var ive *InvalidValueError
	return errors.As(err, &ive)
}

// IsPhaseError reports whether err is a phase policy violation.
func IsPhaseError(err error) bool {
	var pe *PhaseError
	return errors.As(err, &pe)
}
