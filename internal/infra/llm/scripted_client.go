package llm

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"retouch/internal/domain/agent/ports"
)

// OfferedTool in a scripted turn stands for the first tool of the request.
// It lets one execute turn serve any plan step.
const OfferedTool = "@offered"

// ScriptedTurn is one canned decision.
type ScriptedTurn struct {
	Content   string         `yaml:"content"`
	Tool      string         `yaml:"tool"`
	Arguments map[string]any `yaml:"arguments"`
}

// Script is a replayable decision sequence keyed by loop phase. The last turn
// of a phase repeats once the phase's queue is used up.
type Script struct {
	Model  string                    `yaml:"model"`
	Phases map[string][]ScriptedTurn `yaml:"phases"`
}

// ScriptedClient replays a Script. It is safe for concurrent use and keeps
// every request it received.
type ScriptedClient struct {
	mu       sync.Mutex
	script   Script
	cursor   map[string]int
	requests []ports.CompletionRequest
}

var _ ports.LLMClient = (*ScriptedClient)(nil)

// NewScriptedClient builds a client from an in-memory script.
func NewScriptedClient(script Script) *ScriptedClient {
	if script.Model == "" {
		script.Model = "scripted"
	}
	return &ScriptedClient{script: script, cursor: map[string]int{}}
}

// LoadScript reads a YAML script. ${VAR} references are expanded from the
// environment before parsing.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("read script: %w", err)
	}
	var script Script
	if len(bytes.TrimSpace(data)) == 0 {
		return script, fmt.Errorf("script %s is empty", path)
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &script); err != nil {
		return Script{}, fmt.Errorf("parse script %s: %w", path, err)
	}
	if len(script.Phases) == 0 {
		return Script{}, fmt.Errorf("script %s defines no phases", path)
	}
	return script, nil
}

func (c *ScriptedClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, req)

	phase, _ := req.Metadata["phase"].(string)
	turns := c.script.Phases[phase]
	if len(turns) == 0 {
		return nil, fmt.Errorf("scripted client: no turns for phase %q", phase)
	}
	idx := c.cursor[phase]
	if idx >= len(turns) {
		idx = len(turns) - 1
	}
	c.cursor[phase]++
	turn := turns[idx]

	resp := &ports.CompletionResponse{Content: turn.Content, StopReason: "stop"}
	name := strings.TrimSpace(turn.Tool)
	if name == OfferedTool {
		if len(req.Tools) == 0 {
			return nil, fmt.Errorf("scripted client: phase %q turn %d wants the offered tool but none was offered", phase, idx)
		}
		name = req.Tools[0].Name
	}
	if name != "" {
		resp.StopReason = "tool_calls"
		resp.ToolCalls = []ports.ToolCall{{
			ID:        fmt.Sprintf("scripted-%s-%d", phase, c.cursor[phase]),
			Name:      name,
			Arguments: cloneArguments(turn.Arguments),
		}}
	}
	return resp, nil
}

func (c *ScriptedClient) Model() string { return c.script.Model }

// Requests returns a copy of every request received so far.
func (c *ScriptedClient) Requests() []ports.CompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ports.CompletionRequest(nil), c.requests...)
}

func cloneArguments(args map[string]any) map[string]any {
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = v
	}
	return out
}
