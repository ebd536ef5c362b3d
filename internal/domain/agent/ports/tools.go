package ports

import (
	"context"
	"errors"
	"time"

	"retouch/internal/domain/history"
	"retouch/internal/domain/raster"
)

var (
	// ErrUnknownOperation is returned when a requested name is not in the
	// catalogue. The dispatcher never repairs names; the plan sequencer does.
	ErrUnknownOperation = errors.New("unknown operation")
	// ErrInvalidArguments is returned for missing required fields and
	// out-of-range numbers.
	ErrInvalidArguments = errors.New("invalid arguments")
	// ErrStructuredArgument marks a free-text structured value that could not
	// be parsed. It is recovered with a neutral default, never surfaced as a
	// failed call.
	ErrStructuredArgument = errors.New("structured argument parse failure")
)

// ToolExecutor executes a single catalogue operation against a workspace.
type ToolExecutor interface {
	// Execute applies the call. Arguments are already validated and coerced.
	Execute(ctx context.Context, ws Workspace, call ToolCall) (*ToolResult, error)

	// Definition returns the tool's schema for the decision-maker
	Definition() ToolDefinition

	// Metadata returns tool metadata
	Metadata() ToolMetadata
}

// ToolRegistry manages the catalogue.
type ToolRegistry interface {
	Register(tool ToolExecutor) error
	Get(name string) (ToolExecutor, error)
	List() []ToolDefinition
}

// Workspace is the slice of session state a tool may touch: read the head
// and append exactly one artifact.
type Workspace interface {
	Head() *history.Artifact
	Root() *history.Artifact
	ArtifactCount() int
	Commit(ctx context.Context, op history.Operation, preview, full *raster.Image) (*history.Artifact, error)
	Undo(ctx context.Context, op history.Operation) (*history.Artifact, error)
}

// ToolCall represents a request to execute a tool
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Reason returns the free-text rationale argument, if any.
func (c ToolCall) Reason() string {
	if c.Arguments == nil {
		return ""
	}
	reason, _ := c.Arguments["reason"].(string)
	return reason
}

// ToolResult is the result of tool execution
type ToolResult struct {
	CallID   string         `json:"call_id"`
	Content  string         `json:"content"`
	Error    error          `json:"-"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ToolDefinition describes a tool for the decision-maker
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ParameterSchema defines tool parameters (JSON Schema subset)
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property defines a single parameter.
//
// Format "hsl_triple" marks a value that may arrive as free text encoding
// three numbers; the dispatcher parses it and substitutes [0,0,0] on failure.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description"`
	Enum        []any     `json:"enum,omitempty"`
	Minimum     *float64  `json:"minimum,omitempty"`
	Maximum     *float64  `json:"maximum,omitempty"`
	Items       *Property `json:"items,omitempty"`
	Format      string    `json:"format,omitempty"`
}

// FormatHSLTriple is the Property.Format for per-band colour triples.
const FormatHSLTriple = "hsl_triple"

// Bounds builds a numeric property with an inclusive range.
func Bounds(description string, minimum, maximum float64) Property {
	return Property{
		Type:        "number",
		Description: description,
		Minimum:     &minimum,
		Maximum:     &maximum,
	}
}

// ToolMetadata contains tool metadata
type ToolMetadata struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
}

const (
	// CategoryAdjustment marks plannable catalogue operations.
	CategoryAdjustment = "adjustment"
	// CategoryHistory marks history operations such as undo_step.
	CategoryHistory = "history"
	// CategoryControl marks loop control tools that never reach the
	// dispatcher.
	CategoryControl = "control"
)

// CallRecord is one entry of the append-only function-call log.
type CallRecord struct {
	Step          int            `json:"step"`
	Name          string         `json:"name"`
	Arguments     map[string]any `json:"arguments,omitempty"`
	Reason        string         `json:"reason,omitempty"`
	ArtifactIndex int            `json:"artifact_index"`
	At            time.Time      `json:"at"`
}
