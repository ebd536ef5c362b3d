package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"retouch/internal/domain/agent/ports"
	retoucherrors "retouch/internal/shared/errors"
)

const toolCallReply = `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1,
  "model": "gpt-4o",
  "choices": [{
    "index": 0,
    "message": {
      "role": "assistant",
      "content": "",
      "tool_calls": [{
        "id": "call_1",
        "type": "function",
        "function": {"name": "adjust_contrast", "arguments": "{'contrast_factor': 30, 'reason': 'more punch',}"}
      }]
    },
    "finish_reason": "tool_calls"
  }],
  "usage": {"prompt_tokens": 5, "completion_tokens": 7, "total_tokens": 12}
}`

func TestOpenAIClientSendsImagesAndRepairsArguments(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toolCallReply))
	}))
	defer server.Close()

	client, err := NewOpenAIClient(Config{APIKey: "test-key", BaseURL: server.URL, Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAIClient: %v", err)
	}

	resp, err := client.Complete(context.Background(), ports.CompletionRequest{
		Messages: []ports.Message{
			{Role: "system", Content: "be a retoucher"},
			{Role: "user", Content: "step 1", Attachments: []ports.Attachment{{Name: "000_execute.png", MediaType: "image/png", Data: []byte{1, 2, 3}}}},
		},
		Tools:      []ports.ToolDefinition{{Name: "adjust_contrast", Parameters: ports.ParameterSchema{Type: "object"}}},
		ToolChoice: ports.ToolChoiceRequired,
		Metadata:   map[string]any{"phase": "execute"},
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if len(resp.ToolCalls) != 1 {
		t.Fatalf("expected one tool call, got %d", len(resp.ToolCalls))
	}
	call := resp.ToolCalls[0]
	if call.Name != "adjust_contrast" || call.Arguments["contrast_factor"] != 30.0 || call.Arguments["reason"] != "more punch" {
		t.Fatalf("unexpected call %#v", call)
	}
	if resp.Usage.TotalTokens != 12 || resp.StopReason != "tool_calls" {
		t.Fatalf("unexpected usage or stop reason: %#v", resp)
	}

	if captured["tool_choice"] != "required" {
		t.Fatalf("tool_choice not forwarded: %#v", captured["tool_choice"])
	}
	messages, _ := captured["messages"].([]any)
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	user, _ := messages[1].(map[string]any)
	parts, _ := user["content"].([]any)
	if len(parts) != 2 {
		t.Fatalf("expected text and image parts, got %#v", user["content"])
	}
	image, _ := parts[1].(map[string]any)
	imageURL, _ := image["image_url"].(map[string]any)
	if url, _ := imageURL["url"].(string); !strings.HasPrefix(url, "data:image/png;base64,") {
		t.Fatalf("expected data url, got %q", url)
	}
}

func TestNewOpenAIClientRequiresKey(t *testing.T) {
	if _, err := NewOpenAIClient(Config{}); err == nil {
		t.Fatal("expected missing key error")
	}
}

func TestClassifyOpenAIError(t *testing.T) {
	var terr *retoucherrors.TransientError
	err := classifyOpenAIError(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"})
	if !errors.As(err, &terr) || terr.StatusCode != 429 {
		t.Fatalf("expected transient 429, got %#v", err)
	}

	err = classifyOpenAIError(&openai.APIError{HTTPStatusCode: 503})
	if !retoucherrors.IsTransient(err) {
		t.Fatalf("expected transient 503, got %v", err)
	}

	var perr *retoucherrors.PermanentError
	err = classifyOpenAIError(&openai.RequestError{HTTPStatusCode: 401, Err: errors.New("bad key")})
	if !errors.As(err, &perr) || perr.StatusCode != 401 {
		t.Fatalf("expected permanent 401, got %#v", err)
	}

	err = classifyOpenAIError(&openai.APIError{HTTPStatusCode: 400})
	if retoucherrors.IsTransient(err) {
		t.Fatalf("400 must not be retried: %v", err)
	}

	if err := classifyOpenAIError(context.Canceled); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled passthrough, got %v", err)
	}
}

func TestDecodeArguments(t *testing.T) {
	args, err := DecodeArguments(`{"exposure_factor": 0.5}`)
	if err != nil || args["exposure_factor"] != 0.5 {
		t.Fatalf("valid JSON: %v %#v", err, args)
	}

	args, err = DecodeArguments(`{exposure_factor: 0.5, reason: "brighter"`)
	if err != nil || args["reason"] != "brighter" {
		t.Fatalf("repaired JSON: %v %#v", err, args)
	}

	args, err = DecodeArguments("  ")
	if err != nil || len(args) != 0 {
		t.Fatalf("empty arguments: %v %#v", err, args)
	}

	if got := EncodeArguments(nil); got != "{}" {
		t.Fatalf("EncodeArguments(nil) = %q", got)
	}
}
