// Package retouch holds the catalogue executors: one per adjustment plus
// undo_step.
package retouch

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"retouch/internal/domain/agent/ports"
	"retouch/internal/domain/history"
	"retouch/internal/domain/raster"
)

// BaseTool carries the definition and metadata shared by every executor.
type BaseTool struct {
	definition ports.ToolDefinition
	metadata   ports.ToolMetadata
}

// NewBaseTool builds a BaseTool.
func NewBaseTool(definition ports.ToolDefinition, metadata ports.ToolMetadata) BaseTool {
	return BaseTool{definition: definition, metadata: metadata}
}

func (b BaseTool) Definition() ports.ToolDefinition { return b.definition }

func (b BaseTool) Metadata() ports.ToolMetadata { return b.metadata }

const reasonDescription = "Why this adjustment is being made."

func reasonProperty() ports.Property {
	return ports.Property{Type: "string", Description: reasonDescription}
}

// commit applies fn to the head's working raster and, when present, its
// full-resolution twin, then appends the result.
func commit(ctx context.Context, ws ports.Workspace, call ports.ToolCall, fn func(*raster.Image) *raster.Image) (*ports.ToolResult, error) {
	head := ws.Head()
	if head == nil {
		return nil, history.ErrNoRoot
	}
	preview := fn(head.Image)
	var full *raster.Image
	if head.Full != nil {
		full = fn(head.Full)
	}
	artifact, err := ws.Commit(ctx, history.Operation{
		Name:      call.Name,
		Arguments: call.Arguments,
		Reason:    call.Reason(),
	}, preview, full)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", call.Name, err)
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		Content:  fmt.Sprintf("Applied %s(%s); current image is version %d.", call.Name, FormatArguments(call.Arguments), artifact.Index),
		Metadata: map[string]any{"artifact_index": artifact.Index},
	}, nil
}

// FormatArguments renders arguments as sorted key=value pairs, leaving out
// the free-text reason.
func FormatArguments(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for key := range args {
		if key == "reason" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", key, args[key]))
	}
	return strings.Join(parts, ", ")
}
