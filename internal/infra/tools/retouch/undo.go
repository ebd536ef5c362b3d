package retouch

import (
	"context"
	"fmt"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/history"
)

type undoStep struct {
	BaseTool
}

func NewUndoStep() ports.ToolExecutor {
	return &undoStep{
		BaseTool: NewBaseTool(
			ports.ToolDefinition{
				Name:        OpUndoStep,
				Description: "Discard the most recent adjustment and return to the previous version of the image.",
				Parameters: ports.ParameterSchema{
					Type: "object",
					Properties: map[string]ports.Property{
						"reason": {Type: "string", Description: "Why the last adjustment is being discarded."},
					},
					Required: []string{"reason"},
				},
			},
			ports.ToolMetadata{
				Name:     OpUndoStep,
				Version:  "1.0.0",
				Category: ports.CategoryHistory,
				Tags:     []string{"history"},
			},
		),
	}
}

func (t *undoStep) Execute(ctx context.Context, ws ports.Workspace, call ports.ToolCall) (*ports.ToolResult, error) {
	artifact, err := ws.Undo(ctx, history.Operation{
		Name:      call.Name,
		Arguments: call.Arguments,
		Reason:    call.Reason(),
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Name, err)
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		Content:  fmt.Sprintf("Restored version %d as version %d.", artifact.RevertOf, artifact.Index),
		Metadata: map[string]any{"artifact_index": artifact.Index, "revert_of": artifact.RevertOf},
	}, nil
}
