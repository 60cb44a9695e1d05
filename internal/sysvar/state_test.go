package sysvar

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	s := New()
	assert.Equal(t, EnvUnset, s.Environment)
	assert.Equal(t, ItpPythonSV, s.ItpLib)
	assert.Equal(t, OSUnset, s.OS)
	assert.False(t, s.InPrepare)
}

func TestSet_Environment(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(VarEnvironment, `"UEFI SHELL"`))
	assert.Equal(t, EnvUEFIShell, s.Environment)

	require.NoError(t, s.Set(VarEnvironment, "BIOS_MENU"))
	assert.Equal(t, EnvBIOSMenu, s.Environment)

	require.NoError(t, s.Set(VarEnvironment, "os"))
	assert.Equal(t, EnvOS, s.Environment)
}

func TestSet_OutOfDomainKeepsOldValue(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(VarEnvironment, "OS"))

	err := s.Set(VarEnvironment, "MOON")
	require.Error(t, err)
	assert.True(t, IsInvalidValue(err))
	assert.Equal(t, EnvOS, s.Environment)

	err = s.Set(VarOS, "BeOS")
	assert.True(t, IsInvalidValue(err))
	assert.Equal(t, OSUnset, s.OS)
}

func TestSet_UnknownVariable(t *testing.T) {
	s := New()
	err := s.Set("retries", "3")
	assert.True(t, errors.Is(err, ErrUnknownVariable))
}

func TestSet_ItpLibPhasePolicy(t *testing.T) {
	s := New()
	s.CheckStage = true

	s.InPrepare = true
	require.NoError(t, s.Set(VarItpLib, "cscript"))
	assert.Equal(t, ItpCScripts, s.ItpLib)

	s.InPrepare = false
	err := s.Set(VarItpLib, "pythonsv")
	require.Error(t, err)
	assert.True(t, IsPhaseError(err))
	assert.Equal(t, ItpCScripts, s.ItpLib)

	// Re-asserting the current value is not a change.
	require.NoError(t, s.Set(VarItpLib, "cscripts"))
}

func TestSet_ItpLibWithoutCheckStage(t *testing.T) {
	s := New()
	require.NoError(t, s.Set(VarItpLib, "cscripts"))
	assert.Equal(t, ItpCScripts, s.ItpLib)
}

func TestReset_KeepsCheckStage(t *testing.T) {
	s := New()
	s.CheckStage = true
	s.Environment = EnvOS
	s.InPrepare = true
	s.Reset()
	assert.True(t, s.CheckStage)
	assert.Equal(t, EnvUnset, s.Environment)
	assert.False(t, s.InPrepare)
}

func TestClone_IsIndependent(t *testing.T) {
	s := New()
	c := s.Clone()
	c.Environment = EnvOS
	assert.Equal(t, EnvUnset, s.Environment)
}
