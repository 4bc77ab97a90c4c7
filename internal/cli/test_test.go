package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const harnessScenarios = "../harness/testdata/scenarios"

const passingScenario = `
name: quick_signup
description: "Register and spend one token"
flow:
  - invoke: register
    args: { name: Ana, email: ana@x.com, credential: pw }
    expect:
      case: ok
  - invoke: use_token
    expect:
      case: ok
      result: { tokens: 2 }
assertions:
  - type: balance
    email: ana@x.com
    tokens: 2
`

const failingScenario = `
name: wrong_balance
description: "Asserts a balance the flow never reaches"
flow:
  - invoke: register
    args: { name: Ana, email: ana@x.com, credential: pw }
assertions:
  - type: balance
    email: ana@x.com
    tokens: 99
`

func newTestCmd(t *testing.T, format string, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: format})
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return buf, cmd.Execute()
}

func writeScenarioDir(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0755))
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := newTestCmd(t, "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := newTestCmd(t, "text", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	dir := writeScenarioDir(t, nil)

	buf, err := newTestCmd(t, "text", dir)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	dir := writeScenarioDir(t, nil)

	buf, err := newTestCmd(t, "json", dir)
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(0), data["total"])
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	buf, err := newTestCmd(t, "text", harnessScenarios)
	require.NoError(t, err, buf.String())
	assert.Contains(t, buf.String(), "✓ ana_end_to_end")
	assert.Contains(t, buf.String(), "0 failed")
	assert.Contains(t, buf.String(), "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	buf, err := newTestCmd(t, "json", harnessScenarios, "--filter", "session_*")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(1), data["total"])
	assert.Equal(t, float64(1), data["passed"])
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, err := newTestCmd(t, "text", harnessScenarios, "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"quick_signup.yaml": passingScenario})
	goldenPath := filepath.Join(filepath.Dir(dir), "golden", "quick_signup.golden")

	buf, err := newTestCmd(t, "text", dir, "--update")
	require.NoError(t, err, buf.String())
	assert.Contains(t, buf.String(), "✓ quick_signup (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name": "quick_signup"`)
	assert.Contains(t, string(golden), `"credential": "********"`)

	_, err = newTestCmd(t, "text", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0644))
	buf, err = newTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "trace does not match golden file")
}

func TestTestCommandCustomGoldenDir(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"quick_signup.yaml": passingScenario})
	goldenDir := filepath.Join(t.TempDir(), "snapshots")

	_, err := newTestCmd(t, "text", dir, "--update", "--golden", goldenDir)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(goldenDir, "quick_signup.golden"))
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"quick_signup.yaml":  passingScenario,
		"wrong_balance.yaml": failingScenario,
		"notes.txt":          "ignored",
	})

	buf, err := newTestCmd(t, "json", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeTestFailed, resp.Error.Code)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, float64(2), data["total"])
	assert.Equal(t, float64(1), data["passed"])
	assert.Equal(t, float64(1), data["failed"])
}

func TestTestCommandLoadError(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"broken.yaml": "name: broken\n"})

	buf, err := newTestCmd(t, "text", dir)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
}
