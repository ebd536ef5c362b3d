package retouch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/app/toolregistry"
	"retouch/internal/domain/agent/loop"
	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/raster"
	"retouch/internal/infra/codec"
	"retouch/internal/infra/llm"
	"retouch/internal/infra/output"
	jsonx "retouch/internal/shared/json"
	"retouch/internal/shared/logging"
)

func turn(tool string, args map[string]any) llm.ScriptedTurn {
	return llm.ScriptedTurn{Tool: tool, Arguments: args}
}

func exposureScript(verdicts ...bool) llm.Script {
	reflect := make([]llm.ScriptedTurn, 0, len(verdicts))
	for _, ok := range verdicts {
		reflect = append(reflect, turn("satisfactory", map[string]any{"is_satisfactory": ok, "reason": "checked"}))
	}
	return llm.Script{Phases: map[string][]llm.ScriptedTurn{
		"analyze": {turn("return_response", map[string]any{"response": "a flat grey frame"})},
		"plan":    {turn("submit_plan", map[string]any{"plan": []any{"adjust_exposure"}})},
		"execute": {turn(llm.OfferedTool, map[string]any{"exposure_factor": 0.5, "reason": "brighten"})},
		"reflect": reflect,
	}}
}

func newTestService(t *testing.T, script llm.Script, settings Settings) *Service {
	t.Helper()
	registry, err := toolregistry.NewRegistry(toolregistry.Config{})
	require.NoError(t, err)
	if settings.OutputDir == "" {
		settings.OutputDir = t.TempDir()
	}
	svc, err := NewService(Dependencies{
		Registry:   registry,
		Dispatcher: toolregistry.NewDispatcher(registry, toolregistry.WithLogger(logging.Nop())),
		Renderer:   codec.NewRenderer(64),
		DecisionMaker: func() (ports.LLMClient, error) {
			return llm.NewScriptedClient(script), nil
		},
		Logger: logging.Nop(),
	}, settings)
	require.NoError(t, err)
	return svc
}

func writeImage(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, codec.Save(path, raster.Filled(w, h, 90, 100, 110)))
	return path
}

func TestRunSatisfiedSessionWritesLayout(t *testing.T) {
	src := writeImage(t, t.TempDir(), "beach.png", 40, 20)
	svc := newTestService(t, exposureScript(true), Settings{PreviewShortEdge: 10, RetryCeiling: 5})

	report, err := svc.Run(context.Background(), RunRequest{ImagePath: src})
	require.NoError(t, err)

	assert.Equal(t, loop.OutcomeSatisfied, report.Outcome)
	assert.Equal(t, 1, report.Attempts)
	assert.Equal(t, 2, report.Artifacts)
	assert.True(t, strings.HasPrefix(filepath.Base(report.Dir), "beach_session-"))

	final, err := codec.Load(report.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, 40, final.Width, "artifacts are exported at full resolution")
	r, _, _ := final.RGB(0, 0)
	assert.Greater(t, r, uint8(90))

	logData, err := os.ReadFile(filepath.Join(report.Dir, output.ProcessingLogFile))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(logData)), "\n")
	assert.Equal(t, "SESSION END: satisfied", lines[len(lines)-1])

	summaryData, err := os.ReadFile(filepath.Join(report.Dir, output.SummaryFile))
	require.NoError(t, err)
	var summary output.Summary
	require.NoError(t, jsonx.Unmarshal(summaryData, &summary))
	assert.Equal(t, "satisfied", summary.Outcome)
	assert.Equal(t, 5, summary.RetryCeiling)
	assert.False(t, filepath.IsAbs(summary.FinalArtifact))
	require.Len(t, summary.Calls, 2)
	assert.Equal(t, "adjust_exposure", summary.Calls[0].Name)
	assert.Equal(t, "satisfactory", summary.Calls[1].Name)
	assert.Equal(t, true, summary.Calls[1].Arguments["is_satisfactory"])
}

func TestRunRejectionUndoesAndRetries(t *testing.T) {
	src := writeImage(t, t.TempDir(), "street.jpg", 12, 12)
	svc := newTestService(t, exposureScript(false, true), Settings{RetryCeiling: 5})

	report, err := svc.Run(context.Background(), RunRequest{ImagePath: src})
	require.NoError(t, err)
	assert.Equal(t, loop.OutcomeSatisfied, report.Outcome)
	assert.Equal(t, 2, report.Attempts)
	assert.Equal(t, 4, report.Artifacts)
}

func TestRunAbortedSessionStillWritesSummary(t *testing.T) {
	src := writeImage(t, t.TempDir(), "dusk.png", 8, 8)
	script := exposureScript(true)
	script.Phases["execute"] = []llm.ScriptedTurn{turn(llm.OfferedTool, map[string]any{"exposure_factor": 50.0, "reason": "way too much"})}
	svc := newTestService(t, script, Settings{RetryCeiling: 5})

	report, err := svc.Run(context.Background(), RunRequest{ImagePath: src})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrInvalidArguments)
	require.NotNil(t, report)
	assert.Equal(t, loop.OutcomeAborted, report.Outcome)

	summaryData, err := os.ReadFile(filepath.Join(report.Dir, output.SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(summaryData), `"outcome": "aborted"`)
}

func TestRunMissingImage(t *testing.T) {
	svc := newTestService(t, exposureScript(true), Settings{})
	_, err := svc.Run(context.Background(), RunRequest{ImagePath: filepath.Join(t.TempDir(), "nope.png")})
	require.Error(t, err)
}

func TestBatchRunsEverySupportedImage(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "b.png", 6, 6)
	writeImage(t, dir, "a.png", 6, 6)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644))

	svc := newTestService(t, exposureScript(true), Settings{Concurrency: 2, RetryCeiling: 3})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	batch, err := svc.Batch(ctx, dir)
	require.NoError(t, err)
	require.Len(t, batch.Reports, 2)
	assert.Equal(t, "a.png", batch.Reports[0].Image)
	assert.Equal(t, "b.png", batch.Reports[1].Image)
	assert.NotEqual(t, batch.Reports[0].Dir, batch.Reports[1].Dir)
	assert.Zero(t, batch.Failed())
	assert.True(t, strings.HasPrefix(batch.BatchID, "batch-"))
}

func TestBatchEmptyDirectory(t *testing.T) {
	svc := newTestService(t, exposureScript(true), Settings{})
	batch, err := svc.Batch(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, batch.Reports)
}

func TestApplyWritesFullResolutionResult(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "in.png", 30, 10)
	out := filepath.Join(dir, "out", "result.png")
	svc := newTestService(t, exposureScript(true), Settings{PreviewShortEdge: 4})

	args, err := ParseArguments([]string{"exposure_factor=+1"})
	require.NoError(t, err)
	report, err := svc.Apply(context.Background(), ApplyRequest{Input: src, Output: out, Operation: "adjust_exposure", Arguments: args})
	require.NoError(t, err)
	assert.Equal(t, 1.0, report.Arguments["exposure_factor"])

	img, err := codec.Load(out)
	require.NoError(t, err)
	assert.Equal(t, 30, img.Width)
	g := img.Pix[1]
	assert.Greater(t, g, uint8(100))
}

func TestApplyRejectsBadCalls(t *testing.T) {
	dir := t.TempDir()
	src := writeImage(t, dir, "in.png", 4, 4)
	svc := newTestService(t, exposureScript(true), Settings{})
	ctx := context.Background()

	_, err := svc.Apply(ctx, ApplyRequest{Input: src, Output: filepath.Join(dir, "x.png"), Operation: "adjust_sharpness"})
	assert.ErrorIs(t, err, ports.ErrUnknownOperation)

	_, err = svc.Apply(ctx, ApplyRequest{Input: src, Output: filepath.Join(dir, "x.png"), Operation: "adjust_contrast",
		Arguments: map[string]any{"contrast_factor": 500.0}})
	assert.ErrorIs(t, err, ports.ErrInvalidArguments)

	_, err = svc.Apply(ctx, ApplyRequest{Input: src, Operation: "adjust_contrast"})
	assert.Error(t, err)
}

func TestParseArguments(t *testing.T) {
	args, err := ParseArguments([]string{"contrast_factor=30", "blue=[10, -5, 0]", " reason = punchier "})
	require.NoError(t, err)
	assert.Equal(t, 30.0, args["contrast_factor"])
	assert.Equal(t, "[10, -5, 0]", args["blue"])
	assert.Equal(t, "punchier", args["reason"])

	_, err = ParseArguments([]string{"novalue"})
	assert.Error(t, err)
}

func TestNewServiceValidates(t *testing.T) {
	_, err := NewService(Dependencies{}, Settings{OutputDir: "x"})
	assert.Error(t, err)
}
