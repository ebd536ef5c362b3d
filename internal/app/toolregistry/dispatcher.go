package toolregistry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/history"
	"retouch/internal/domain/session"
	"retouch/internal/infra/tools/retouch"
	"retouch/internal/shared/logging"
)

const (
	traceScopeDispatch = "retouch.dispatch"
	traceAttrToolName  = "retouch.tool_name"
	traceAttrArtifact  = "retouch.artifact_index"
	traceAttrStatus    = "retouch.status"
)

// Session is the bookkeeping surface the dispatcher writes to: the tool
// workspace plus the call log and processing log.
type Session interface {
	ports.Workspace
	RecordCall(name string, args map[string]any, reason string, artifactIndex int) ports.CallRecord
	AppendLog(format string, args ...any) error
}

// DispatchRecorder receives one observation per dispatch.
type DispatchRecorder interface {
	RecordDispatch(ctx context.Context, tool, outcome string, duration time.Duration)
}

// Outcome describes a successful dispatch.
type Outcome struct {
	Result   *ports.ToolResult
	Record   ports.CallRecord
	Artifact *history.Artifact
	// Warnings lists recovered problems: structured arguments replaced by a
	// neutral default and automation failures.
	Warnings []error
}

// Dispatcher resolves, validates and executes catalogue calls.
type Dispatcher struct {
	registry   ports.ToolRegistry
	automation ports.Automation
	metrics    DispatchRecorder
	logger     logging.Logger
}

// DispatcherOption customises a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithAutomation forwards every successful call to an on-screen editor.
func WithAutomation(automation ports.Automation) DispatcherOption {
	return func(d *Dispatcher) {
		d.automation = automation
	}
}

// WithDispatchRecorder records dispatch metrics.
func WithDispatchRecorder(recorder DispatchRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = recorder
	}
}

// WithLogger overrides the diagnostic logger.
func WithLogger(logger logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logging.OrNop(logger)
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry ports.ToolRegistry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   logging.NewComponentLogger("dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch executes call against s. On success exactly one artifact and one
// call-log entry have been appended, and one processing-log line written.
// Errors wrap ports.ErrUnknownOperation, ports.ErrInvalidArguments or the
// executor's own failure; nothing is appended in those cases.
func (d *Dispatcher) Dispatch(ctx context.Context, s Session, call ports.ToolCall) (outcome *Outcome, err error) {
	start := time.Now()
	ctx, span := otel.Tracer(traceScopeDispatch).Start(ctx, "dispatch."+call.Name,
		trace.WithAttributes(attribute.String(traceAttrToolName, call.Name)))
	defer func() {
		markSpanResult(span, err)
		span.End()
		if d.metrics != nil {
			d.metrics.RecordDispatch(ctx, call.Name, outcomeLabel(err), time.Since(start))
		}
	}()

	tool, err := d.registry.Get(call.Name)
	if err != nil {
		return nil, err
	}
	args, warnings, err := normalizeArguments(tool.Definition().Parameters, call.Arguments)
	for _, warning := range warnings {
		d.logger.Warn("%s: %v", call.Name, warning)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Name, err)
	}
	call.Arguments = args

	before := s.ArtifactCount()
	result, err := tool.Execute(ctx, s, call)
	if err != nil {
		return nil, err
	}
	if added := s.ArtifactCount() - before; added != 1 {
		return nil, fmt.Errorf("%s appended %d artifacts, want exactly 1", call.Name, added)
	}
	artifact := s.Head()
	span.SetAttributes(attribute.Int(traceAttrArtifact, artifact.Index))

	reason := call.Reason()
	record := s.RecordCall(call.Name, args, reason, artifact.Index)
	if err := s.AppendLog("step %d: %s(%s) -> version %d | reason: %s",
		record.Step, call.Name, retouch.FormatArguments(args), artifact.Index, reason); err != nil {
		return nil, fmt.Errorf("append processing log: %w", err)
	}

	if d.automation != nil {
		if err := d.automation.Perform(ctx, automationCall(call.Name, args)); err != nil {
			d.logger.Warn("automation for %s failed: %v", call.Name, err)
			warnings = append(warnings, fmt.Errorf("automation: %w", err))
		}
	}

	d.logger.Debug("dispatched %s -> artifact %d", call.Name, artifact.Index)
	return &Outcome{Result: result, Record: record, Artifact: artifact, Warnings: warnings}, nil
}

// DispatchStep runs Dispatch for the control loop. Recovered warnings are
// appended to the result content so the decision-maker sees them.
func (d *Dispatcher) DispatchStep(ctx context.Context, s *session.State, call ports.ToolCall) (*ports.ToolResult, error) {
	outcome, err := d.Dispatch(ctx, s, call)
	if err != nil {
		return nil, err
	}
	result := outcome.Result
	if result == nil {
		result = &ports.ToolResult{CallID: call.ID}
	}
	for _, warning := range outcome.Warnings {
		result.Content += "\nNote: " + warning.Error()
	}
	return result, nil
}

// automationCall flattens validated arguments into named numeric values.
// Band triples become "<band>.hue", "<band>.saturation" and
// "<band>.lightness".
func automationCall(name string, args map[string]any) ports.AutomationCall {
	values := make(map[string]float64, len(args))
	for key, arg := range args {
		switch v := arg.(type) {
		case float64:
			values[key] = v
		case []float64:
			if len(v) == 3 {
				values[key+".hue"] = v[0]
				values[key+".saturation"] = v[1]
				values[key+".lightness"] = v[2]
			}
		}
	}
	return ports.AutomationCall{Operation: name, Values: values}
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ports.ErrUnknownOperation):
		return "unknown_operation"
	case errors.Is(err, ports.ErrInvalidArguments):
		return "invalid_arguments"
	case errors.Is(err, history.ErrUndoUnderflow):
		return "undo_underflow"
	default:
		return "error"
	}
}

func markSpanResult(span trace.Span, err error) {
	if span == nil {
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.String(traceAttrStatus, "error"))
		return
	}
	span.SetStatus(codes.Ok, "")
	span.SetAttributes(attribute.String(traceAttrStatus, "success"))
}
