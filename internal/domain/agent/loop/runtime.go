package loop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/plan"
	"retouch/internal/domain/session"
	"retouch/internal/shared/logging"
)

const (
	phaseAnalyze = "analyze"
	phasePlan    = "plan"
	phaseExecute = "execute"
	phaseReflect = "reflect"

	// metadataPhase matches the key the instrumented client reads.
	metadataPhase = "phase"
)

type stepKind int

const (
	stepApplied stepKind = iota
	stepResponded
	// stepOffPlan: the decision-maker called something other than the plan
	// head. Nothing was dispatched and the head stays pending.
	stepOffPlan
)

// runtime is the per-session state machine. It is used from a single
// goroutine.
type runtime struct {
	engine   *Engine
	ctx      context.Context
	state    *session.State
	seq      *plan.Sequencer
	logger   logging.Logger
	pinned   []ports.Message
	recent   []ports.Message
	feedback string
}

// Run drives s until it is satisfied, the retry ceiling is reached or an
// error aborts it. The returned error is non-nil only for aborted sessions;
// the Result is always returned.
func (e *Engine) Run(ctx context.Context, s *session.State) (*Result, error) {
	ctx, span := startSessionSpan(ctx, s.ID())
	defer span.End()

	seq, err := plan.NewSequencer(e.catalogue.Names(ports.CategoryAdjustment), e.logger)
	if err != nil {
		setSpanStatus(span, err)
		return &Result{SessionID: s.ID(), Outcome: OutcomeAborted, Err: err}, err
	}
	r := &runtime{
		engine: e,
		ctx:    ctx,
		state:  s,
		seq:    seq,
		logger: e.logger,
	}

	var runErr error
	outcome := OutcomeAborted
	if runErr = s.RecordMessage(ports.Message{Role: "system", Content: systemPrompt, Source: ports.MessageSourceSystemPrompt}); runErr == nil {
		outcome, runErr = r.run()
	}
	result := &Result{
		SessionID: s.ID(),
		Outcome:   outcome,
		Attempts:  s.Attempts(),
		Calls:     len(s.Calls()),
		Verdict:   s.Verdict(),
		Final:     s.Head(),
		Err:       runErr,
	}
	if err := s.AppendLog("%s", result.EndLine(e.retryCeiling)); err != nil {
		e.logger.Warn("session %s: write end line: %v", s.ID(), err)
	}
	if e.metrics != nil {
		e.metrics.RecordSession(ctx, string(outcome), result.Attempts)
	}
	span.SetAttributes(attribute.String(attrOutcome, string(outcome)))
	setSpanStatus(span, runErr)
	e.logger.Info("session %s finished: outcome=%s attempts=%d", s.ID(), outcome, result.Attempts)
	return result, runErr
}

func (r *runtime) run() (Outcome, error) {
	if err := r.analyze(); err != nil {
		return OutcomeAborted, err
	}
	for {
		if err := r.ctx.Err(); err != nil {
			return OutcomeAborted, fmt.Errorf("session cancelled: %w", err)
		}
		if r.state.Satisfied() {
			return OutcomeSatisfied, nil
		}
		if r.state.Attempts() >= r.engine.retryCeiling {
			r.logger.Warn("session %s: stopped after %d attempts", r.state.ID(), r.state.Attempts())
			return OutcomeTooManyRetries, nil
		}
		if r.seq.Empty() {
			if err := r.plan(); err != nil {
				return OutcomeAborted, err
			}
			if r.seq.Empty() {
				attempt := r.state.BeginAttempt()
				if err := r.state.AppendLog("attempt %d: plan was empty, planning again", attempt); err != nil {
					return OutcomeAborted, err
				}
				continue
			}
		}
		if err := r.step(r.state.BeginAttempt()); err != nil {
			return OutcomeAborted, err
		}
	}
}

// analyze runs the two one-time analysis turns.
func (r *runtime) analyze() (err error) {
	ctx, span := r.startSpan(spanAnalyze)
	defer func() { finishSpan(span, err) }()

	for _, prompt := range []string{contentAnalysisPrompt, conceptPrompt(r.engine.globalStyle)} {
		attachments, err := r.currentImage(phaseAnalyze)
		if err != nil {
			return err
		}
		resp, err := r.complete(ctx, phaseAnalyze, prompt, attachments, []ports.ToolDefinition{ReturnResponseDefinition()})
		if err != nil {
			return err
		}
		if text := responseText(resp); text != "" {
			r.pinned = append(r.pinned, assistantNote(text))
		}
	}
	return nil
}

// plan obtains and repairs a plan, replacing the pending one.
func (r *runtime) plan() (err error) {
	ctx, span := r.startSpan(spanPlan)
	defer func() { finishSpan(span, err) }()

	catalogue := r.engine.catalogue.Names(ports.CategoryAdjustment)
	attachments, err := r.currentImage(phasePlan)
	if err != nil {
		return err
	}
	resp, err := r.complete(ctx, phasePlan, planPrompt(catalogue), attachments, []ports.ToolDefinition{SubmitPlanDefinition(catalogue)})
	if err != nil {
		return err
	}

	var repair plan.Repair
	text, tokens, ok := planTokens(resp)
	switch {
	case ok && tokens != nil:
		repair = r.seq.SubmitTokens(tokens)
	case ok:
		repair = r.seq.Submit(text)
	default:
		repair = r.seq.Submit(resp.Content)
	}
	for _, sub := range repair.Substitutions {
		if err := r.state.AppendLog("plan repair: %q -> %s (similarity %.2f)", sub.Token, sub.Name, sub.Similarity); err != nil {
			return err
		}
	}
	summary := strings.Join(repair.Plan, ", ")
	if err := r.state.AppendLog("plan: [%s]", summary); err != nil {
		return err
	}
	r.remember(fmt.Sprintf("The retouching plan is: [%s].", summary))
	span.SetAttributes(attribute.Int("retouch.plan_length", len(repair.Plan)))
	return nil
}

// step runs EXECUTE_STEP, REFLECT and, on rejection, UNDO for the plan head.
func (r *runtime) step(attempt int) error {
	start := r.engine.clock()
	operation, _ := r.seq.Current()

	kind, err := r.execute(attempt, operation)
	if err != nil {
		r.recordStep("error", start)
		return err
	}
	if kind == stepResponded {
		r.recordStep("responded", start)
		return nil
	}
	if kind == stepOffPlan {
		r.recordStep("off_plan", start)
		return nil
	}

	accepted, reason, err := r.reflect(attempt, operation)
	if err != nil {
		r.recordStep("error", start)
		return err
	}
	if accepted {
		r.feedback = ""
		if err := r.seq.FinishCurrentPlan(); err != nil {
			return err
		}
		if r.seq.Empty() {
			r.state.MarkSatisfied(reason)
		}
		r.recordStep("accepted", start)
		return nil
	}

	if err := r.undo(reason); err != nil {
		r.recordStep("error", start)
		return err
	}
	r.feedback = reason
	r.recordStep("rejected", start)
	return nil
}

func (r *runtime) execute(attempt int, operation string) (kind stepKind, err error) {
	ctx, span := r.startStepSpan(spanExecute, attempt, operation)
	defer func() { finishSpan(span, err) }()

	attachments, err := r.currentImage(phaseExecute)
	if err != nil {
		return stepApplied, err
	}
	if r.engine.renderer != nil {
		histogram, err := r.engine.renderer.Histogram(fmt.Sprintf("%03d_histogram.png", r.state.Head().Index), r.state.Head().Image)
		if err != nil {
			return stepApplied, fmt.Errorf("render histogram: %w", err)
		}
		attachments = append(attachments, histogram)
	}

	tools := append(r.engine.catalogue.Definitions(operation), ReturnResponseDefinition())
	resp, err := r.complete(ctx, phaseExecute, executePrompt(operation, attempt, r.feedback), attachments, tools)
	if err != nil {
		return stepApplied, err
	}

	call, ok := firstCall(resp)
	if !ok || call.Name == ToolReturnResponse {
		text := responseText(resp)
		r.state.RecordCall(ToolReturnResponse, map[string]any{"response": text}, "", r.state.Head().Index)
		if err := r.state.AppendLog("attempt %d: response without adjustment: %s", attempt, text); err != nil {
			return stepResponded, err
		}
		r.remember(text)
		return stepResponded, nil
	}

	if call.Name != operation {
		return stepOffPlan, r.refuseOffPlan(attempt, operation, call)
	}

	dispatchCtx, cancel := r.stepContext(ctx)
	defer cancel()
	result, err := r.engine.dispatcher.DispatchStep(dispatchCtx, r.state, call)
	if err != nil {
		return stepApplied, fmt.Errorf("execute %s: %w", call.Name, err)
	}
	if err := r.state.RecordMessage(ports.Message{
		Role:       "tool",
		Content:    result.Content,
		ToolCallID: call.ID,
		Source:     ports.MessageSourceToolResult,
	}); err != nil {
		return stepApplied, err
	}
	r.remember(fmt.Sprintf("%s Reason: %s", result.Content, call.Reason()))
	return stepApplied, nil
}

// refuseOffPlan answers a call to anything but the plan head without
// dispatching it. The refusal becomes feedback for the retry of the head.
func (r *runtime) refuseOffPlan(attempt int, operation string, call ports.ToolCall) error {
	refusal := fmt.Sprintf("%s was not applied: the current plan step is %s.", call.Name, operation)
	if err := r.state.RecordMessage(ports.Message{
		Role:       "tool",
		Content:    refusal,
		ToolCallID: call.ID,
		Source:     ports.MessageSourceToolResult,
	}); err != nil {
		return err
	}
	if err := r.state.AppendLog("attempt %d: %s", attempt, refusal); err != nil {
		return err
	}
	r.logger.Warn("session %s: off-plan call %s during %s", r.state.ID(), call.Name, operation)
	r.feedback = refusal
	return nil
}

func (r *runtime) reflect(attempt int, operation string) (accepted bool, reason string, err error) {
	ctx, span := r.startStepSpan(spanReflect, attempt, operation)
	defer func() { finishSpan(span, err) }()

	var attachments []ports.Attachment
	if r.engine.renderer != nil {
		comparison, err := r.engine.renderer.Comparison(
			fmt.Sprintf("%03d_comparison.png", r.state.Head().Index),
			r.state.Root().Image, r.state.Head().Image)
		if err != nil {
			return false, "", fmt.Errorf("render comparison: %w", err)
		}
		attachments = append(attachments, comparison)
	}

	resp, err := r.complete(ctx, phaseReflect, reflectPrompt(operation), attachments, []ports.ToolDefinition{SatisfactoryDefinition()})
	if err != nil {
		return false, "", err
	}
	accepted, reason = verdict(resp)

	not := ""
	if !accepted {
		not = "NOT "
	}
	line := fmt.Sprintf("The adjustment %s is %ssatisfactory, reason: %s", operation, not, reason)
	r.state.RecordCall(ToolSatisfactory, map[string]any{"is_satisfactory": accepted, "reason": reason}, reason, r.state.Head().Index)
	if err := r.state.AppendLog("attempt %d: %s", attempt, line); err != nil {
		return false, "", err
	}
	r.remember(line)
	span.SetAttributes(attribute.Bool("retouch.accepted", accepted))
	return accepted, reason, nil
}

func (r *runtime) undo(reason string) (err error) {
	ctx, span := r.startSpan(spanUndo)
	defer func() { finishSpan(span, err) }()

	ctx, cancel := r.stepContext(ctx)
	defer cancel()
	if _, err := r.engine.dispatcher.DispatchStep(ctx, r.state, ports.ToolCall{
		ID:        fmt.Sprintf("undo-%d", r.state.ArtifactCount()),
		Name:      undoOperation,
		Arguments: map[string]any{"reason": reason},
	}); err != nil {
		return fmt.Errorf("undo: %w", err)
	}
	return nil
}

// complete sends one decision turn under the step timeout and journals the
// request and the reply.
func (r *runtime) complete(ctx context.Context, phase, prompt string, attachments []ports.Attachment, tools []ports.ToolDefinition) (*ports.CompletionResponse, error) {
	system := ports.Message{Role: "system", Content: systemPrompt, Source: ports.MessageSourceSystemPrompt}
	user := ports.Message{Role: "user", Content: prompt, Attachments: attachments, Source: ports.MessageSourceUserInput}

	messages := make([]ports.Message, 0, len(r.pinned)+len(r.recent)+2)
	messages = append(messages, system)
	messages = append(messages, r.pinned...)
	messages = append(messages, r.recent...)
	messages = append(messages, user)

	if err := r.state.RecordMessage(user); err != nil {
		return nil, err
	}

	callCtx, cancel := r.stepContext(ctx)
	defer cancel()
	resp, err := r.engine.llm.Complete(callCtx, ports.CompletionRequest{
		Messages:    messages,
		Tools:       tools,
		ToolChoice:  ports.ToolChoiceRequired,
		Temperature: r.engine.temperature,
		MaxTokens:   r.engine.maxTokens,
		Metadata:    map[string]any{metadataPhase: phase, "session_id": r.state.ID()},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && r.ctx.Err() == nil {
			return nil, fmt.Errorf("%s decision timed out after %s: %w", phase, r.engine.stepTimeout, err)
		}
		return nil, fmt.Errorf("%s decision: %w", phase, err)
	}
	if resp == nil {
		return nil, fmt.Errorf("%s decision: empty response", phase)
	}
	if err := r.state.RecordMessage(ports.Message{
		Role:      "assistant",
		Content:   resp.Content,
		ToolCalls: resp.ToolCalls,
		Source:    ports.MessageSourceAssistantReply,
	}); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *runtime) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.engine.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.engine.stepTimeout)
}

func (r *runtime) currentImage(label string) ([]ports.Attachment, error) {
	if r.engine.renderer == nil {
		return nil, nil
	}
	head := r.state.Head()
	attachment, err := r.engine.renderer.Encode(fmt.Sprintf("%03d_%s.png", head.Index, label), head.Image)
	if err != nil {
		return nil, fmt.Errorf("render current image: %w", err)
	}
	return []ports.Attachment{attachment}, nil
}

// remember keeps a step summary for later turns, dropping the oldest beyond
// the history limit.
func (r *runtime) remember(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	r.recent = append(r.recent, assistantNote(text))
	if over := len(r.recent) - r.engine.historyLimit; over > 0 {
		r.recent = append([]ports.Message(nil), r.recent[over:]...)
	}
}

func (r *runtime) recordStep(outcome string, start time.Time) {
	if r.engine.metrics == nil {
		return
	}
	r.engine.metrics.RecordStep(r.ctx, outcome, r.engine.clock().Sub(start))
}

func assistantNote(text string) ports.Message {
	return ports.Message{Role: "assistant", Content: text, Source: ports.MessageSourceAssistantReply}
}
