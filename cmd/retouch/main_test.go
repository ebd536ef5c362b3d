package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/domain/raster"
	"retouch/internal/infra/codec"
	jsonx "retouch/internal/shared/json"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

// writeConfig returns a config file that keeps logs and output in dir.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	path := filepath.Join(dir, "retouch.yaml")
	content := fmt.Sprintf("session:\n  output_dir: %s\nlogging:\n  dir: %s\n%s",
		filepath.Join(dir, "out"), filepath.Join(dir, "logs"), extra)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCatalogJSON(t *testing.T) {
	out, err := execute(t, "catalog", "--json")
	require.NoError(t, err)

	var payload struct {
		Catalogue []struct{ Name string } `json:"catalogue"`
		Control   []struct{ Name string } `json:"control"`
	}
	require.NoError(t, jsonx.Unmarshal([]byte(out), &payload))
	assert.Len(t, payload.Catalogue, 11)
	names := make([]string, 0, len(payload.Control))
	for _, def := range payload.Control {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"submit_plan", "satisfactory", "return_response"}, names)
}

func TestCatalogText(t *testing.T) {
	out, err := execute(t, "catalog")
	require.NoError(t, err)
	assert.Contains(t, out, "adjust_color_temperature")
	assert.Contains(t, out, "[2000, 50000]")
	assert.Contains(t, out, "optional")
}

func TestApplyCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	in := filepath.Join(dir, "in.png")
	require.NoError(t, codec.Save(in, raster.Filled(8, 4, 100, 100, 100)))
	outPath := filepath.Join(dir, "out.png")

	out, err := execute(t, "--config", cfgPath, "apply", "--op", "adjust_contrast", "--arg", "contrast_factor=30", in, outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "adjust_contrast(contrast_factor=30)")
	_, statErr := os.Stat(outPath)
	assert.NoError(t, statErr)

	_, err = execute(t, "--config", cfgPath, "apply", in, outPath)
	assert.ErrorContains(t, err, "--op is required")
}

func TestRunCommandWithScriptedProvider(t *testing.T) {
	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(scriptPath, []byte(`
phases:
  analyze:
    - content: "an evenly lit grey card"
  plan:
    - tool: submit_plan
      arguments: {plan: [adjust_saturation]}
  execute:
    - tool: "@offered"
      arguments: {saturation_factor: 10, reason: a touch more colour}
  reflect:
    - tool: satisfactory
      arguments: {is_satisfactory: false, reason: no visible change}
`), 0o600))
	cfgPath := writeConfig(t, dir, fmt.Sprintf("llm:\n  provider: scripted\n  script_path: %s\n", scriptPath))
	img := filepath.Join(dir, "card.png")
	require.NoError(t, codec.Save(img, raster.Filled(6, 6, 120, 110, 100)))

	out, err := execute(t, "--config", cfgPath, "--retry-ceiling", "2", "run", img)
	require.Error(t, err)
	var exitErr *ExitCodeError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, exitUnsatisfied, exitErr.Code)
	assert.Contains(t, out, "too_many_retries")
	assert.Contains(t, out, "attempts=2")
}

func TestCalibrateCheck(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hidpi: 2
controls:
  Contrast:
    left: [100, 40]
    middle: [300, 40]
    right: [500, 40]
    min: -100
    max: 100
`), 0o600))
	out, err := execute(t, "calibrate-check", path)
	require.NoError(t, err)
	assert.Contains(t, out, "controls=1")
	assert.Contains(t, out, "-> (50, 20)")
	assert.Contains(t, out, "-> (250, 20)")
}

func TestInvalidConfigIsRejected(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "adjust:\n  whites_mode: glow\n")
	_, err := execute(t, "--config", cfgPath, "apply", "--op", "adjust_tone", "a.png", "b.png")
	assert.ErrorContains(t, err, "adjust-whites-mode")
}

func TestRunExitCodes(t *testing.T) {
	assert.Equal(t, 0, run(context.Background(), []string{"catalog"}))
	assert.Equal(t, 1, run(context.Background(), []string{"run"}))
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, exitOK, exitCodeFor(nil))
	assert.Equal(t, exitFailure, exitCodeFor(errors.New("boom")))
	assert.Equal(t, exitInterrupted, exitCodeFor(fmt.Errorf("run: %w", context.Canceled)))
	assert.Equal(t, exitUnsatisfied, exitCodeFor(fmt.Errorf("wrapped: %w", &ExitCodeError{Code: exitUnsatisfied, Err: errors.New("x")})))
}
