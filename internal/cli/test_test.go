package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: cli_smoke
steps:
  - "Log: hello"
  - "Switch AC: OFF"
assertions:
  - type: output_contains
    text: "hello"
  - type: call_contains
    call: "ac OFF"
`

const failingScenario = `name: cli_fails
steps:
  - "Log: hello"
assertions:
  - type: output_contains
    text: "goodbye"
`

func TestTestCommand_Pass(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smoke.yaml", passingScenario)

	out, err := execute(t, "test", dir)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ cli_smoke")
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestTestCommand_Fail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smoke.yaml", passingScenario)
	writeFile(t, dir, "fails.yaml", failingScenario)

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ cli_fails")
	assert.Contains(t, out, "goodbye")
	assert.Contains(t, out, "Test Summary: 1 passed, 1 failed, 2 total")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smoke.yaml", passingScenario)
	writeFile(t, dir, "fails.yaml", failingScenario)

	out, err := execute(t, "test", dir, "--filter", "smo*")
	require.NoError(t, err, out)
	assert.Contains(t, out, "1 total")
}

func TestTestCommand_Golden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "smoke.yaml", passingScenario)
	golden := filepath.Join(dir, "golden", "smoke.golden")

	_, err := execute(t, "test", dir, "--update")
	require.NoError(t, err)
	require.FileExists(t, golden)

	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), "scenario cli_smoke\n")
	assert.Contains(t, string(data), "  call ac OFF\n")

	_, err = execute(t, "test", dir)
	require.NoError(t, err, "matches the golden it just wrote")

	require.NoError(t, os.WriteFile(golden, []byte("scenario cli_smoke\n"), 0o644))
	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTestCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fails.yaml", failingScenario)

	out, err := execute(t, "--format", "json", "test", dir)
	require.Error(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, resp.Data.Failed)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
}

func TestTestCommand_LoadError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "name: broken\nsteps: []\n")

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	out, err := execute(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestTestCommand_MissingDir(t *testing.T) {
	_, err := execute(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
