package device

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pvl/internal/sysvar"
	"github.com/roach88/pvl/internal/table"
)

func TestDryRunRecordsCalls(t *testing.T) {
	var out bytes.Buffer
	d := NewDryRun(&out)
	ctx := context.Background()

	require.NoError(t, d.SwitchAC(ctx, false))
	_, err := d.ExecuteCommand(ctx, sysvar.EnvOS, Command{Line: "echo hi", Timeout: 20 * time.Second, NoCheck: true})
	require.NoError(t, err)
	require.NoError(t, d.Sleep(ctx, time.Hour))

	assert.Equal(t, "ac OFF\nexecute[OS] nocheck timeout=20s echo hi\nsleep 1h0m0s\n", out.String())
}

func TestDryRunPowerState(t *testing.T) {
	d := NewDryRun(nil)
	ctx := context.Background()

	state, err := d.PowerState(ctx)
	require.NoError(t, err)
	assert.Equal(t, PowerS0, state)

	require.NoError(t, d.SwitchAC(ctx, false))
	state, _ = d.PowerState(ctx)
	assert.Equal(t, PowerG3, state)

	require.NoError(t, d.SwitchDC(ctx, false))
	state, _ = d.PowerState(ctx)
	assert.Equal(t, PowerS5, state)
}

func TestDryRunKnobs(t *testing.T) {
	d := NewDryRun(nil)
	ctx := context.Background()

	ok, err := d.CheckBIOSKnobs(ctx, sysvar.EnvOS, "VTdSupport=0x1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, d.SetBIOSKnobs(ctx, sysvar.EnvOS, "VTdSupport=0x1, SncEn=0x0"))
	ok, _ = d.CheckBIOSKnobs(ctx, sysvar.EnvOS, "VTdSupport=0x1, SncEn=0x0")
	assert.True(t, ok)

	knob := table.MenuKnob{ID: "SecureBoot", Name: "Secure Boot Mode", Path: []string{"EDKII Menu"}}
	changed, err := d.SetMenuKnob(ctx, knob, "Standard Mode")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, _ = d.SetMenuKnob(ctx, knob, "Standard Mode")
	assert.False(t, changed)
	ok, _ = d.CheckMenuKnob(ctx, knob, "Standard Mode")
	assert.True(t, ok)
	assert.Equal(t, []string{"EDKII Menu"}, knob.Path)
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, Sleep(context.Background(), 0))
}
