package toolregistry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/history"
	"retouch/internal/domain/raster"
	"retouch/internal/domain/session"
	"retouch/internal/infra/tools/retouch"
	"retouch/internal/shared/logging"
)

type recordingAutomation struct {
	calls []ports.AutomationCall
	err   error
}

func (a *recordingAutomation) Perform(_ context.Context, call ports.AutomationCall) error {
	a.calls = append(a.calls, call)
	return a.err
}

type recordingMetrics struct {
	outcomes []string
}

func (m *recordingMetrics) RecordDispatch(_ context.Context, tool, outcome string, _ time.Duration) {
	m.outcomes = append(m.outcomes, tool+":"+outcome)
}

func colourfulRoot() *raster.Image {
	img := raster.New(4, 2)
	colours := [][3]uint8{{220, 40, 30}, {30, 200, 60}, {20, 60, 230}, {250, 240, 10}}
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			c := colours[(x+y)%len(colours)]
			img.SetRGB(x, y, c[0], c[1], c[2])
		}
	}
	return img
}

func newDispatchFixture(t *testing.T, opts ...DispatcherOption) (*Dispatcher, *session.State) {
	t.Helper()
	state, err := session.New(context.Background(), "session-test", "photo", colourfulRoot(), nil)
	require.NoError(t, err)
	opts = append([]DispatcherOption{WithLogger(logging.Nop())}, opts...)
	return NewDispatcher(newTestRegistry(t), opts...), state
}

func TestDispatchDesaturateThenUndo(t *testing.T) {
	d, state := newDispatchFixture(t)
	root := state.Root().Image.Clone()

	outcome, err := d.Dispatch(context.Background(), state, ports.ToolCall{
		Name:      retouch.OpSaturation,
		Arguments: map[string]any{"saturation_factor": -100, "reason": "desaturate"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, outcome.Artifact.Index)
	assert.Equal(t, 0.0, state.Head().Image.MaxSaturation())
	require.Len(t, state.Log(), 1)
	assert.Contains(t, state.Log()[0], "desaturate")

	_, err = d.Dispatch(context.Background(), state, ports.ToolCall{
		Name:      retouch.OpUndoStep,
		Arguments: map[string]any{"reason": "too flat"},
	})
	require.NoError(t, err)
	assert.True(t, state.Head().Image.Equal(root))

	logLines := state.Log()
	require.Len(t, logLines, 2)
	assert.Contains(t, logLines[0], "desaturate")
	assert.Contains(t, logLines[1], "too flat")

	calls := state.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, retouch.OpSaturation, calls[0].Name)
	assert.Equal(t, -100.0, calls[0].Arguments["saturation_factor"])
	assert.Equal(t, retouch.OpUndoStep, calls[1].Name)
	assert.Equal(t, 2, calls[1].ArtifactIndex)
}

func TestDispatchUnknownOperationAppendsNothing(t *testing.T) {
	metrics := &recordingMetrics{}
	d, state := newDispatchFixture(t, WithDispatchRecorder(metrics))

	_, err := d.Dispatch(context.Background(), state, ports.ToolCall{Name: "adjust_everything"})
	require.ErrorIs(t, err, ports.ErrUnknownOperation)
	assert.Equal(t, 1, state.ArtifactCount())
	assert.Empty(t, state.Calls())
	assert.Empty(t, state.Log())
	assert.Equal(t, []string{"adjust_everything:unknown_operation"}, metrics.outcomes)
}

func TestDispatchRejectsOutOfRange(t *testing.T) {
	metrics := &recordingMetrics{}
	d, state := newDispatchFixture(t, WithDispatchRecorder(metrics))

	_, err := d.Dispatch(context.Background(), state, ports.ToolCall{
		Name:      retouch.OpExposure,
		Arguments: map[string]any{"exposure_factor": 9.0, "reason": "way brighter"},
	})
	require.ErrorIs(t, err, ports.ErrInvalidArguments)
	assert.Equal(t, 1, state.ArtifactCount())
	assert.Equal(t, []string{retouch.OpExposure + ":invalid_arguments"}, metrics.outcomes)
}

func TestDispatchUndoUnderflow(t *testing.T) {
	d, state := newDispatchFixture(t)

	_, err := d.Dispatch(context.Background(), state, ports.ToolCall{
		Name:      retouch.OpUndoStep,
		Arguments: map[string]any{"reason": "nothing to undo"},
	})
	require.ErrorIs(t, err, history.ErrUndoUnderflow)
	assert.Empty(t, state.Calls())
}

func TestDispatchRecoversMalformedBandTriple(t *testing.T) {
	d, state := newDispatchFixture(t)

	outcome, err := d.Dispatch(context.Background(), state, ports.ToolCall{
		Name: retouch.OpIndividualColor,
		Arguments: map[string]any{
			"red":    "more vivid",
			"blue":   "[0, -50, 0]",
			"reason": "calmer sky",
		},
	})
	require.NoError(t, err)
	require.Len(t, outcome.Warnings, 1)
	assert.ErrorIs(t, outcome.Warnings[0], ports.ErrStructuredArgument)
	assert.Equal(t, []float64{0, 0, 0}, outcome.Record.Arguments["red"])
	assert.Equal(t, []float64{0, -50, 0}, outcome.Record.Arguments["blue"])
	assert.Equal(t, 2, state.ArtifactCount())
}

func TestDispatchForwardsValidatedValuesToAutomation(t *testing.T) {
	automation := &recordingAutomation{}
	d, state := newDispatchFixture(t, WithAutomation(automation))

	_, err := d.Dispatch(context.Background(), state, ports.ToolCall{
		Name:      retouch.OpContrast,
		Arguments: map[string]any{"contrast_factor": "+30", "reason": "punchier"},
	})
	require.NoError(t, err)
	require.Len(t, automation.calls, 1)
	assert.Equal(t, retouch.OpContrast, automation.calls[0].Operation)
	assert.Equal(t, map[string]float64{"contrast_factor": 30}, automation.calls[0].Values)

	_, err = d.Dispatch(context.Background(), state, ports.ToolCall{
		Name:      retouch.OpIndividualColor,
		Arguments: map[string]any{"green": "[5, 0, -10]", "reason": "foliage"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"green.hue": 5, "green.saturation": 0, "green.lightness": -10}, automation.calls[1].Values)
}

func TestDispatchAutomationFailureIsAWarning(t *testing.T) {
	automation := &recordingAutomation{err: errors.New("window not found")}
	d, state := newDispatchFixture(t, WithAutomation(automation))

	outcome, err := d.Dispatch(context.Background(), state, ports.ToolCall{
		Name:      retouch.OpTone,
		Arguments: map[string]any{"tone_factor": 10.0, "reason": "less green"},
	})
	require.NoError(t, err)
	require.Len(t, outcome.Warnings, 1)
	assert.True(t, strings.Contains(outcome.Warnings[0].Error(), "window not found"))
}

type doubleCommitTool struct {
	retouch.BaseTool
}

func (doubleCommitTool) Execute(ctx context.Context, ws ports.Workspace, call ports.ToolCall) (*ports.ToolResult, error) {
	for i := 0; i < 2; i++ {
		if _, err := ws.Commit(ctx, history.Operation{Name: call.Name}, ws.Head().Image.Clone(), nil); err != nil {
			return nil, err
		}
	}
	return &ports.ToolResult{}, nil
}

func TestDispatchEnforcesExactlyOneArtifact(t *testing.T) {
	registry := newTestRegistry(t)
	require.NoError(t, registry.Register(doubleCommitTool{retouch.NewBaseTool(
		ports.ToolDefinition{Name: "double"},
		ports.ToolMetadata{Name: "double", Category: ports.CategoryAdjustment},
	)}))
	state, err := session.New(context.Background(), "session-test", "photo", colourfulRoot(), nil)
	require.NoError(t, err)

	_, err = NewDispatcher(registry, WithLogger(logging.Nop())).Dispatch(context.Background(), state, ports.ToolCall{Name: "double"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want exactly 1")
	assert.Empty(t, state.Calls())
}
