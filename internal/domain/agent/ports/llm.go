package ports

import "context"

// LLMClient is the decision-maker: given messages and a tool menu it answers
// with content and/or tool calls.
type LLMClient interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
	Model() string
}

// ToolChoice constrains how the decision-maker may answer.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
	ToolChoiceNone     ToolChoice = "none"
)

// CompletionRequest contains all parameters for one decision turn
type CompletionRequest struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	ToolChoice  ToolChoice       `json:"tool_choice,omitempty"`
	Temperature float64          `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Metadata    map[string]any   `json:"metadata,omitempty"`
}

// CompletionResponse is the decision-maker's answer
type CompletionResponse struct {
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	StopReason string     `json:"stop_reason"`
	Usage      TokenUsage `json:"usage"`
}

// TokenUsage tracks token consumption
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// MessageSource tags where a message came from for the transcript.
type MessageSource string

const (
	MessageSourceUnknown        MessageSource = ""
	MessageSourceSystemPrompt   MessageSource = "system_prompt"
	MessageSourceUserInput      MessageSource = "user_input"
	MessageSourceAssistantReply MessageSource = "assistant_reply"
	MessageSourceToolResult     MessageSource = "tool_result"
)

// Message represents a conversation message
type Message struct {
	Role        string        `json:"role"`
	Content     string        `json:"content"`
	ToolCalls   []ToolCall    `json:"tool_calls,omitempty"`
	ToolCallID  string        `json:"tool_call_id,omitempty"`
	Attachments []Attachment  `json:"attachments,omitempty"`
	Source      MessageSource `json:"source,omitempty"`
}

// Attachment is an image shown to the decision-maker. Data holds the encoded
// bytes; Path is the persisted file the transcript refers to instead.
type Attachment struct {
	Name      string `json:"name"`
	MediaType string `json:"media_type"`
	Data      []byte `json:"-"`
	Path      string `json:"path,omitempty"`
}
