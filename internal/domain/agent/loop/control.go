package loop

import (
	"fmt"
	"strconv"
	"strings"

	"retouch/internal/domain/agent/ports"
)

// Control tool names. The loop answers these itself; they never reach the
// dispatcher.
const (
	ToolSatisfactory   = "satisfactory"
	ToolReturnResponse = "return_response"
	ToolSubmitPlan     = "submit_plan"

	undoOperation = "undo_step"
)

// IsControlTool reports whether name is handled by the loop.
func IsControlTool(name string) bool {
	switch name {
	case ToolSatisfactory, ToolReturnResponse, ToolSubmitPlan:
		return true
	}
	return false
}

// SatisfactoryDefinition is offered during reflection.
func SatisfactoryDefinition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        ToolSatisfactory,
		Description: "Judge the latest adjustment by comparing the original (left) with the current image (right).",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"is_satisfactory": {Type: "boolean", Description: "true to keep the adjustment, false to undo it."},
				"reason":          {Type: "string", Description: "What looks right or wrong."},
			},
			Required: []string{"is_satisfactory", "reason"},
		},
	}
}

// ReturnResponseDefinition lets the decision-maker answer in prose.
func ReturnResponseDefinition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        ToolReturnResponse,
		Description: "Reply with text instead of adjusting the image. Put the whole reply in response.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"response": {Type: "string", Description: "The reply."},
			},
			Required: []string{"response"},
		},
	}
}

// SubmitPlanDefinition is offered during planning.
func SubmitPlanDefinition(catalogue []string) ports.ToolDefinition {
	names := make([]any, 0, len(catalogue))
	for _, name := range catalogue {
		names = append(names, name)
	}
	return ports.ToolDefinition{
		Name:        ToolSubmitPlan,
		Description: "Submit the ordered list of adjustments to apply, e.g. [\"adjust_exposure\", \"adjust_contrast\"].",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"plan": {
					Type:        "array",
					Description: "Ordered adjustment names.",
					Items:       &ports.Property{Type: "string", Enum: names},
				},
				"reason": {Type: "string", Description: "Why this order."},
			},
			Required: []string{"plan"},
		},
	}
}

// firstCall returns the first tool call of resp, if any.
func firstCall(resp *ports.CompletionResponse) (ports.ToolCall, bool) {
	if resp == nil || len(resp.ToolCalls) == 0 {
		return ports.ToolCall{}, false
	}
	return resp.ToolCalls[0], true
}

// responseText extracts prose from a return_response call, falling back to
// the message content.
func responseText(resp *ports.CompletionResponse) string {
	if call, ok := firstCall(resp); ok && call.Name == ToolReturnResponse {
		if text, ok := call.Arguments["response"].(string); ok {
			return strings.TrimSpace(text)
		}
	}
	if resp == nil {
		return ""
	}
	return strings.TrimSpace(resp.Content)
}

// verdict reads a satisfactory call. Anything that is not an explicit
// acceptance counts as a rejection.
func verdict(resp *ports.CompletionResponse) (accepted bool, reason string) {
	call, ok := firstCall(resp)
	if !ok || call.Name != ToolSatisfactory {
		text := ""
		if resp != nil {
			text = strings.TrimSpace(resp.Content)
		}
		if text == "" {
			text = "no verdict given"
		}
		return false, text
	}
	reason, _ = call.Arguments["reason"].(string)
	switch v := call.Arguments["is_satisfactory"].(type) {
	case bool:
		accepted = v
	case string:
		accepted, _ = strconv.ParseBool(strings.TrimSpace(v))
	}
	return accepted, strings.TrimSpace(reason)
}

// planTokens reads a submit_plan call. ok is false when the response holds no
// plan call, in which case the caller repairs the raw content instead.
func planTokens(resp *ports.CompletionResponse) (text string, tokens []string, ok bool) {
	call, found := firstCall(resp)
	if !found || call.Name != ToolSubmitPlan {
		return "", nil, false
	}
	switch v := call.Arguments["plan"].(type) {
	case string:
		return v, nil, true
	case []string:
		return "", v, true
	case []any:
		tokens = make([]string, 0, len(v))
		for _, item := range v {
			tokens = append(tokens, strings.TrimSpace(fmt.Sprint(item)))
		}
		return "", tokens, true
	}
	return "", nil, false
}
