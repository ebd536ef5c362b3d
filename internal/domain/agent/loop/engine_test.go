package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/history"
	"retouch/internal/domain/raster"
	"retouch/internal/domain/session"
	"retouch/internal/shared/logging"
)

type scriptedLLM struct {
	mu       sync.Mutex
	plan     any
	verdicts []bool
	// respondFirst makes the first execute turn answer in prose.
	respondFirst bool
	// offPlan, when set, is called on every execute turn instead of the
	// offered plan head.
	offPlan      string
	calls        map[string]int
	executeTurns []string
}

func newScriptedLLM(plan any, verdicts ...bool) *scriptedLLM {
	return &scriptedLLM{plan: plan, verdicts: verdicts, calls: map[string]int{}}
}

func (s *scriptedLLM) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	phase, _ := req.Metadata[metadataPhase].(string)
	s.calls[phase]++
	switch phase {
	case phaseAnalyze:
		return toolReply(ToolReturnResponse, map[string]any{"response": "a calm lake at dusk"}), nil
	case phasePlan:
		return toolReply(ToolSubmitPlan, map[string]any{"plan": s.plan}), nil
	case phaseExecute:
		last := req.Messages[len(req.Messages)-1]
		s.executeTurns = append(s.executeTurns, last.Content)
		if s.respondFirst && s.calls[phaseExecute] == 1 {
			return toolReply(ToolReturnResponse, map[string]any{"response": "I need a closer look first"}), nil
		}
		name := req.Tools[0].Name
		if s.offPlan != "" {
			name = s.offPlan
		}
		return toolReply(name, map[string]any{"amount": 10.0, "reason": "try it"}), nil
	case phaseReflect:
		accepted := false
		if n := len(s.verdicts); n > 0 {
			idx := s.calls[phaseReflect] - 1
			if idx >= n {
				idx = n - 1
			}
			accepted = s.verdicts[idx]
		}
		return toolReply(ToolSatisfactory, map[string]any{"is_satisfactory": accepted, "reason": fmt.Sprintf("verdict %d", s.calls[phaseReflect])}), nil
	}
	return nil, fmt.Errorf("unexpected phase %q", phase)
}

func (s *scriptedLLM) Model() string { return "scripted" }

func (s *scriptedLLM) count(phase string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[phase]
}

func toolReply(name string, args map[string]any) *ports.CompletionResponse {
	return &ports.CompletionResponse{ToolCalls: []ports.ToolCall{{ID: "call-" + name, Name: name, Arguments: args}}}
}

type fakeDispatcher struct {
	err   error
	names []string
}

func (d *fakeDispatcher) DispatchStep(ctx context.Context, s *session.State, call ports.ToolCall) (*ports.ToolResult, error) {
	if d.err != nil {
		return nil, d.err
	}
	op := history.Operation{Name: call.Name, Arguments: call.Arguments, Reason: call.Reason()}
	var err error
	if call.Name == undoOperation {
		_, err = s.Undo(ctx, op)
	} else {
		darker := s.Head().Image.MapPixels(func(r, g, b uint8) (uint8, uint8, uint8) { return r / 2, g / 2, b / 2 })
		_, err = s.Commit(ctx, op, darker, nil)
	}
	if err != nil {
		return nil, err
	}
	d.names = append(d.names, call.Name)
	s.RecordCall(call.Name, call.Arguments, call.Reason(), s.Head().Index)
	return &ports.ToolResult{CallID: call.ID, Content: "applied " + call.Name}, nil
}

type fakeCatalogue struct {
	names []string
}

func (c fakeCatalogue) Names(category string) []string {
	if category == ports.CategoryAdjustment {
		return c.names
	}
	return nil
}

func (c fakeCatalogue) Definitions(names ...string) []ports.ToolDefinition {
	defs := make([]ports.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, ports.ToolDefinition{Name: name})
	}
	return defs
}

type sessionRecorder struct {
	sessions []string
	steps    []string
}

func (r *sessionRecorder) RecordStep(_ context.Context, outcome string, _ time.Duration) {
	r.steps = append(r.steps, outcome)
}

func (r *sessionRecorder) RecordSession(_ context.Context, outcome string, _ int) {
	r.sessions = append(r.sessions, outcome)
}

var testCatalogue = fakeCatalogue{names: []string{"adjust_exposure", "adjust_contrast", "adjust_shadows"}}

func newTestEngine(t *testing.T, llm ports.LLMClient, dispatcher Dispatcher, mutate func(*Config)) *Engine {
	t.Helper()
	cfg := Config{
		LLM:        llm,
		Dispatcher: dispatcher,
		Catalogue:  testCatalogue,
		Logger:     logging.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	engine, err := NewEngine(cfg)
	require.NoError(t, err)
	return engine
}

func newTestSession(t *testing.T) *session.State {
	t.Helper()
	s, err := session.New(context.Background(), "session-loop", "lake", raster.Filled(2, 2, 120, 130, 140), nil)
	require.NoError(t, err)
	return s
}

func lastLine(s *session.State) string {
	lines := s.Log()
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}

func TestAlwaysRejectStopsAtRetryCeiling(t *testing.T) {
	llm := newScriptedLLM([]any{"adjust_exposure"}, false)
	dispatcher := &fakeDispatcher{}
	recorder := &sessionRecorder{}
	engine := newTestEngine(t, llm, dispatcher, func(cfg *Config) { cfg.Metrics = recorder })
	s := newTestSession(t)
	root := s.Root().Image.Clone()

	result, err := engine.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, OutcomeTooManyRetries, result.Outcome)
	assert.Equal(t, DefaultRetryCeiling, result.Attempts)
	assert.Equal(t, DefaultRetryCeiling, llm.count(phaseExecute))
	assert.Equal(t, DefaultRetryCeiling, llm.count(phaseReflect))
	assert.Equal(t, 1+2*DefaultRetryCeiling, s.ArtifactCount())
	assert.True(t, s.Head().Image.Equal(root))
	assert.Equal(t, "SESSION END: too many retries (5)", lastLine(s))
	assert.False(t, s.Satisfied())
	assert.Equal(t, []string{string(OutcomeTooManyRetries)}, recorder.sessions)
	assert.Len(t, recorder.steps, DefaultRetryCeiling)
}

func TestAcceptedPlanEndsSatisfied(t *testing.T) {
	llm := newScriptedLLM(`["adjust_contrst", "adjust_shadows"]`, true)
	dispatcher := &fakeDispatcher{}
	engine := newTestEngine(t, llm, dispatcher, nil)
	s := newTestSession(t)

	result, err := engine.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSatisfied, result.Outcome)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []string{"adjust_contrast", "adjust_shadows"}, dispatcher.names)
	assert.Equal(t, "verdict 2", result.Verdict)
	assert.Equal(t, 3, s.ArtifactCount())
	assert.Equal(t, "SESSION END: satisfied", lastLine(s))
	assert.Contains(t, strings.Join(s.Log(), "\n"), `plan repair: "adjust_contrst" -> adjust_contrast`)
	assert.Equal(t, 2, llm.count(phaseAnalyze))
	assert.Equal(t, 1, llm.count(phasePlan))
}

func TestRejectedStepIsRetriedWithFeedback(t *testing.T) {
	llm := newScriptedLLM([]any{"adjust_exposure"}, false, true)
	dispatcher := &fakeDispatcher{}
	engine := newTestEngine(t, llm, dispatcher, nil)
	s := newTestSession(t)

	result, err := engine.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSatisfied, result.Outcome)
	assert.Equal(t, []string{"adjust_exposure", undoOperation, "adjust_exposure"}, dispatcher.names)
	require.Len(t, llm.executeTurns, 2)
	assert.NotContains(t, llm.executeTurns[0], "undone")
	assert.Contains(t, llm.executeTurns[1], "verdict 1")
	assert.Contains(t, strings.Join(s.Log(), "\n"), "is NOT satisfactory, reason: verdict 1")
}

func TestResponseConsumesAttemptWithoutReflection(t *testing.T) {
	llm := newScriptedLLM([]any{"adjust_exposure"}, true)
	llm.respondFirst = true
	engine := newTestEngine(t, llm, &fakeDispatcher{}, nil)
	s := newTestSession(t)

	result, err := engine.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, OutcomeSatisfied, result.Outcome)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 1, llm.count(phaseReflect))
	assert.Equal(t, 2, s.ArtifactCount())
	assert.Equal(t, ToolReturnResponse, s.Calls()[0].Name)
}

func TestOffPlanCallIsRefusedAndConsumesAttempt(t *testing.T) {
	llm := newScriptedLLM([]any{"adjust_exposure"}, true)
	llm.offPlan = "adjust_shadows"
	dispatcher := &fakeDispatcher{}
	recorder := &sessionRecorder{}
	engine := newTestEngine(t, llm, dispatcher, func(cfg *Config) { cfg.Metrics = recorder })
	s := newTestSession(t)

	result, err := engine.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, OutcomeTooManyRetries, result.Outcome)
	assert.Equal(t, DefaultRetryCeiling, result.Attempts)
	assert.Empty(t, dispatcher.names)
	assert.Equal(t, 0, llm.count(phaseReflect))
	assert.Equal(t, 1, llm.count(phasePlan))
	assert.Equal(t, 1, s.ArtifactCount())
	assert.False(t, s.Satisfied())

	log := strings.Join(s.Log(), "\n")
	assert.Contains(t, log, "adjust_shadows was not applied: the current plan step is adjust_exposure.")
	assert.NotContains(t, log, "satisfactory")
	require.Len(t, llm.executeTurns, DefaultRetryCeiling)
	assert.Contains(t, llm.executeTurns[1], "adjust_shadows was not applied")
	assert.Len(t, recorder.steps, DefaultRetryCeiling)
	assert.Equal(t, "off_plan", recorder.steps[0])
}

func TestEmptyPlanConsumesAttempts(t *testing.T) {
	llm := newScriptedLLM("[]")
	engine := newTestEngine(t, llm, &fakeDispatcher{}, func(cfg *Config) { cfg.RetryCeiling = 3 })
	s := newTestSession(t)

	result, err := engine.Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, OutcomeTooManyRetries, result.Outcome)
	assert.Equal(t, 3, llm.count(phasePlan))
	assert.Equal(t, 0, llm.count(phaseExecute))
	assert.Equal(t, 1, s.ArtifactCount())
	assert.Equal(t, "SESSION END: too many retries (3)", lastLine(s))
}

func TestDispatchErrorAbortsSession(t *testing.T) {
	llm := newScriptedLLM([]any{"adjust_exposure"}, true)
	dispatcher := &fakeDispatcher{err: fmt.Errorf("%w: adjust_exposure", ports.ErrInvalidArguments)}
	recorder := &sessionRecorder{}
	engine := newTestEngine(t, llm, dispatcher, func(cfg *Config) { cfg.Metrics = recorder })
	s := newTestSession(t)

	result, err := engine.Run(context.Background(), s)
	require.ErrorIs(t, err, ports.ErrInvalidArguments)
	assert.Equal(t, OutcomeAborted, result.Outcome)
	assert.Equal(t, 0, llm.count(phaseReflect))
	assert.True(t, strings.HasPrefix(lastLine(s), "SESSION END: aborted"))
	assert.Equal(t, []string{string(OutcomeAborted)}, recorder.sessions)
}

func TestCancelledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine := newTestEngine(t, newScriptedLLM([]any{"adjust_exposure"}, true), &fakeDispatcher{}, nil)

	result, err := engine.Run(ctx, newTestSession(t))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, OutcomeAborted, result.Outcome)
}

type blockingLLM struct{}

func (blockingLLM) Complete(ctx context.Context, _ ports.CompletionRequest) (*ports.CompletionResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (blockingLLM) Model() string { return "blocking" }

func TestStepTimeoutAbortsStalledDecision(t *testing.T) {
	engine := newTestEngine(t, blockingLLM{}, &fakeDispatcher{}, func(cfg *Config) { cfg.StepTimeout = 20 * time.Millisecond })

	result, err := engine.Run(context.Background(), newTestSession(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timed out")
	assert.Equal(t, OutcomeAborted, result.Outcome)
}

func TestNewEngineValidatesConfig(t *testing.T) {
	_, err := NewEngine(Config{Dispatcher: &fakeDispatcher{}, Catalogue: testCatalogue})
	require.Error(t, err)
	_, err = NewEngine(Config{LLM: blockingLLM{}, Dispatcher: &fakeDispatcher{}, Catalogue: fakeCatalogue{}})
	require.Error(t, err)

	engine := newTestEngine(t, blockingLLM{}, &fakeDispatcher{}, nil)
	assert.Equal(t, DefaultRetryCeiling, engine.RetryCeiling())
}

func TestVerdictParsing(t *testing.T) {
	accepted, reason := verdict(toolReply(ToolSatisfactory, map[string]any{"is_satisfactory": "true", "reason": " fine "}))
	assert.True(t, accepted)
	assert.Equal(t, "fine", reason)

	accepted, reason = verdict(&ports.CompletionResponse{Content: "looks odd"})
	assert.False(t, accepted)
	assert.Equal(t, "looks odd", reason)
}
