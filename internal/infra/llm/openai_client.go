package llm

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"retouch/internal/domain/agent/ports"
	retoucherrors "retouch/internal/shared/errors"
	"retouch/internal/shared/logging"
)

const (
	defaultOpenAIModel   = "gpt-4o"
	defaultOpenAITimeout = 2 * time.Minute
)

// openaiClient speaks the OpenAI-compatible chat completions API. Image
// attachments are sent inline as data URLs.
type openaiClient struct {
	client *openai.Client
	model  string
	logger logging.Logger
}

var _ ports.LLMClient = (*openaiClient)(nil)

// NewOpenAIClient builds a client for cfg.Model. An empty BaseURL targets the
// public OpenAI endpoint.
func NewOpenAIClient(cfg Config) (ports.LLMClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("openai client: api key is required (llm.api_key or RETOUCH_LLM_API_KEY)")
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultOpenAIModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOpenAITimeout
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		clientConfig.BaseURL = base
	}
	clientConfig.HTTPClient = &http.Client{Timeout: timeout}

	return &openaiClient{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
		logger: logging.NewLLMLogger("openai"),
	}, nil
}

func (c *openaiClient) Model() string { return c.model }

func (c *openaiClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	oaiReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    convertMessages(req.Messages),
		Temperature: float32(req.Temperature),
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		oaiReq.Tools = convertTools(req.Tools)
		if req.ToolChoice != "" {
			oaiReq.ToolChoice = string(req.ToolChoice)
		}
	}

	phase, _ := req.Metadata["phase"].(string)
	c.logger.Debug("chat completion: model=%s phase=%s messages=%d tools=%d", c.model, phase, len(oaiReq.Messages), len(oaiReq.Tools))

	resp, err := c.client.CreateChatCompletion(ctx, oaiReq)
	if err != nil {
		c.logger.Warn("chat completion failed: phase=%s err=%v", phase, err)
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, retoucherrors.NewTransientError(errors.New("no choices returned"), "Decision service returned an empty answer.")
	}

	choice := resp.Choices[0]
	out := &ports.CompletionResponse{
		Content:    choice.Message.Content,
		StopReason: string(choice.FinishReason),
		Usage: ports.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	for _, call := range choice.Message.ToolCalls {
		args, err := DecodeArguments(call.Function.Arguments)
		if err != nil {
			c.logger.Warn("tool call %s: unreadable arguments %q: %v", call.Function.Name, call.Function.Arguments, err)
			args = map[string]any{}
		}
		out.ToolCalls = append(out.ToolCalls, ports.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: args,
		})
	}
	c.logger.Debug("chat completion done: phase=%s finish=%s tokens=%d tool_calls=%d", phase, out.StopReason, out.Usage.TotalTokens, len(out.ToolCalls))
	return out, nil
}

func convertMessages(msgs []ports.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, msg := range msgs {
		converted := openai.ChatCompletionMessage{
			Role:       roleOf(msg.Role),
			ToolCallID: msg.ToolCallID,
		}
		if images := imageParts(msg.Attachments); len(images) > 0 {
			parts := make([]openai.ChatMessagePart, 0, len(images)+1)
			if msg.Content != "" {
				parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: msg.Content})
			}
			converted.MultiContent = append(parts, images...)
		} else {
			converted.Content = msg.Content
		}
		for _, call := range msg.ToolCalls {
			converted.ToolCalls = append(converted.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: EncodeArguments(call.Arguments),
				},
			})
		}
		out = append(out, converted)
	}
	return out
}

func roleOf(role string) string {
	switch role {
	case "system":
		return openai.ChatMessageRoleSystem
	case "assistant":
		return openai.ChatMessageRoleAssistant
	case "tool":
		return openai.ChatMessageRoleTool
	default:
		return openai.ChatMessageRoleUser
	}
}

func imageParts(attachments []ports.Attachment) []openai.ChatMessagePart {
	parts := make([]openai.ChatMessagePart, 0, len(attachments))
	for _, att := range attachments {
		if len(att.Data) == 0 {
			continue
		}
		mediaType := att.MediaType
		if mediaType == "" {
			mediaType = "image/png"
		}
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(att.Data),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}
	return parts
}

func convertTools(tools []ports.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, 0, len(tools))
	for _, tool := range tools {
		if !isValidToolName(tool.Name) {
			continue
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  normalizeToolSchema(tool.Parameters),
			},
		})
	}
	return out
}

// classifyOpenAIError maps API failures onto the shared transient/permanent
// taxonomy so the retry decorator knows what to repeat.
func classifyOpenAIError(err error) error {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}
	if status == 0 {
		return classifyLLMError(err)
	}

	switch {
	case status == http.StatusTooManyRequests:
		e := retoucherrors.NewTransientError(err, "Decision service rate limit reached; retrying with backoff.")
		e.StatusCode = status
		return e
	case status >= 500:
		e := retoucherrors.NewTransientError(err, fmt.Sprintf("Decision service error (%d); retrying.", status))
		e.StatusCode = status
		return e
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e := retoucherrors.NewPermanentError(err, "Decision service rejected the API key. Check llm.api_key.")
		e.StatusCode = status
		return e
	default:
		e := retoucherrors.NewPermanentError(err, fmt.Sprintf("Decision service refused the request (%d).", status))
		e.StatusCode = status
		return e
	}
}
