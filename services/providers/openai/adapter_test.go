package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

func TestNew(t *testing.T) {
	adapter := New()

	if adapter == nil {
		t.Fatal("New() returned nil")
	}

	if adapter.Name() != "openai" {
		t.Errorf("Name() = %s, want openai", adapter.Name())
	}

	if adapter.baseURL != defaultBaseURL {
		t.Errorf("baseURL = %s, want %s", adapter.baseURL, defaultBaseURL)
	}
}

func TestAdapter_GenerateText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header: %s", auth)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "gpt-4o" {
			t.Errorf("model = %s, want gpt-4o", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("messages = %d, want 2", len(req.Messages))
		}

		resp := chatResponse{
			ID:    "chatcmpl-123",
			Model: "gpt-4o",
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: "hello back"}, FinishReason: "stop"},
			},
			Usage: chatUsage{PromptTokens: 12, CompletionTokens: 4, TotalTokens: 16},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := New(WithBaseURL(server.URL))

	resp, err := adapter.GenerateText(context.Background(), &providers.CallParams{
		APIKey:  "test-key",
		ModelID: "gpt-4o",
		Messages: []providers.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "hello"},
		},
	})
	if err != nil {
		t.Fatalf("GenerateText() error: %v", err)
	}

	if resp.Text != "hello back" {
		t.Errorf("Text = %q, want %q", resp.Text, "hello back")
	}
	if resp.Usage == nil || resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Errorf("unexpected usage: %+v", resp.Usage)
	}
}

func TestAdapter_GenerateText_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"Rate limit reached","type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	adapter := New(WithBaseURL(server.URL))

	_, err := adapter.GenerateText(context.Background(), &providers.CallParams{
		APIKey:   "test-key",
		ModelID:  "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "hello"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}

	provErr, ok := err.(*providers.ProviderError)
	if !ok {
		t.Fatalf("expected *providers.ProviderError, got %T", err)
	}
	if !provErr.Retryable {
		t.Error("429 error should be retryable")
	}
	if provErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("StatusCode = %d, want 429", provErr.StatusCode)
	}
}

func TestAdapter_GenerateObject(t *testing.T) {
	schema := json.RawMessage(`{"type":"object","properties":{"title":{"type":"string"}}}`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Tools) != 1 {
			t.Fatalf("tools = %d, want 1", len(req.Tools))
		}
		if req.Tools[0].Function.Name != "task_payload" {
			t.Errorf("tool name = %s, want task_payload", req.Tools[0].Function.Name)
		}
		if req.ToolChoice == nil {
			t.Error("tool_choice not forced")
		}

		resp := chatResponse{
			Choices: []chatChoice{
				{
					Message: chatMessage{
						Role: "assistant",
						ToolCalls: []chatToolCall{
							{
								Type: "function",
								Function: chatToolCallFunction{
									Name:      "task_payload",
									Arguments: `{"title":"Write docs"}`,
								},
							},
						},
					},
					FinishReason: "tool_calls",
				},
			},
			Usage: chatUsage{PromptTokens: 30, CompletionTokens: 8},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	adapter := New(WithBaseURL(server.URL))

	resp, err := adapter.GenerateObject(context.Background(), &providers.CallParams{
		APIKey:     "test-key",
		ModelID:    "gpt-4o",
		Messages:   []providers.Message{{Role: "user", Content: "make a task"}},
		Schema:     schema,
		ObjectName: "task_payload",
	})
	if err != nil {
		t.Fatalf("GenerateObject() error: %v", err)
	}

	var obj map[string]string
	if err := json.Unmarshal(resp.Object, &obj); err != nil {
		t.Fatalf("object is not valid JSON: %v", err)
	}
	if obj["title"] != "Write docs" {
		t.Errorf("title = %q, want %q", obj["title"], "Write docs")
	}
}

func TestAdapter_StreamText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream flag not set")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"hi\"}}]}\n\ndata: [DONE]\n\n"))
	}))
	defer server.Close()

	adapter := New(WithBaseURL(server.URL))

	resp, err := adapter.StreamText(context.Background(), &providers.CallParams{
		APIKey:   "test-key",
		ModelID:  "gpt-4o",
		Messages: []providers.Message{{Role: "user", Content: "hello"}},
	})
	if err != nil {
		t.Fatalf("StreamText() error: %v", err)
	}
	defer resp.Stream.Close()

	if resp.Stream == nil {
		t.Fatal("Stream is nil")
	}
	if resp.Usage != nil {
		t.Error("streaming response should not carry usage")
	}
}
