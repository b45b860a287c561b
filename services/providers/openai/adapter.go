package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

const (
	defaultBaseURL = "https://api.openai.com/v1"
)

// Adapter implements the providers.Adapter interface for OpenAI and any
// provider exposing an OpenAI-compatible chat completions API.
type Adapter struct {
	name       string
	baseURL    string
	httpClient *http.Client
}

// Option configures the adapter
type Option func(*Adapter)

// WithBaseURL overrides the default API endpoint
func WithBaseURL(baseURL string) Option {
	return func(a *Adapter) {
		a.baseURL = baseURL
	}
}

// WithTimeout overrides the default HTTP client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(a *Adapter) {
		a.httpClient.Timeout = timeout
	}
}

// WithName overrides the provider name for OpenAI-compatible services
// such as Perplexity. Pair it with WithBaseURL.
func WithName(name string) Option {
	return func(a *Adapter) {
		a.name = name
	}
}

// New creates a new OpenAI adapter
func New(opts ...Option) *Adapter {
	a := &Adapter{
		name:    "openai",
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return a.name
}

// GenerateText performs a chat completion request
func (a *Adapter) GenerateText(ctx context.Context, params *providers.CallParams) (*providers.Response, error) {
	chatReq := a.buildChatRequest(params, false)

	respBody, err := a.post(ctx, params, chatReq)
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", 0, false, err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "OpenAI returned no choices", 0, false, nil)
	}

	return &providers.Response{
		Text:  chatResp.Choices[0].Message.Content,
		Usage: chatResp.Usage.toUnified(),
	}, nil
}

// StreamText starts a streaming chat completion and returns the open SSE body
// as the stream handle. Consumption of the stream is the caller's responsibility,
// so no usage accounting is reported here.
func (a *Adapter) StreamText(ctx context.Context, params *providers.CallParams) (*providers.Response, error) {
	chatReq := a.buildChatRequest(params, true)

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	httpReq, err := a.newRequest(ctx, params, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		defer httpResp.Body.Close()
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	return &providers.Response{Stream: httpResp.Body}, nil
}

// GenerateObject performs a schema-constrained completion via forced tool calling
func (a *Adapter) GenerateObject(ctx context.Context, params *providers.CallParams) (*providers.Response, error) {
	objectName := params.ObjectName
	if objectName == "" {
		objectName = "generated_object"
	}

	chatReq := a.buildChatRequest(params, false)
	chatReq.Tools = []chatTool{
		{
			Type: "function",
			Function: chatToolFunction{
				Name:        objectName,
				Description: "Produce the requested structured output",
				Parameters:  params.Schema,
			},
		},
	}
	chatReq.ToolChoice = &chatToolChoice{
		Type:     "function",
		Function: chatToolChoiceFunction{Name: objectName},
	}

	respBody, err := a.post(ctx, params, chatReq)
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", 0, false, err)
	}

	if len(chatResp.Choices) == 0 || len(chatResp.Choices[0].Message.ToolCalls) == 0 {
		return nil, providers.NewProviderError(a.Name(), "NO_TOOL_CALL",
			fmt.Sprintf("Model %s returned no tool call for structured output", params.ModelID), 0, false, nil)
	}

	arguments := chatResp.Choices[0].Message.ToolCalls[0].Function.Arguments
	if !json.Valid([]byte(arguments)) {
		return nil, providers.NewProviderError(a.Name(), "INVALID_OBJECT", "Tool call arguments are not valid JSON", 0, false, nil)
	}

	return &providers.Response{
		Object: json.RawMessage(arguments),
		Usage:  chatResp.Usage.toUnified(),
	}, nil
}

// post marshals the request, executes it, and returns the response body or a ProviderError
func (a *Adapter) post(ctx context.Context, params *providers.CallParams, chatReq *chatRequest) ([]byte, error) {
	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "MARSHAL_ERROR", "Failed to marshal request", 0, false, err)
	}

	httpReq, err := a.newRequest(ctx, params, body)
	if err != nil {
		return nil, err
	}

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "READ_ERROR", "Failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, a.handleErrorResponse(httpResp.StatusCode, respBody)
	}

	return respBody, nil
}

// newRequest creates the HTTP request with auth headers set
func (a *Adapter) newRequest(ctx context.Context, params *providers.CallParams, body []byte) (*http.Request, error) {
	baseURL := a.baseURL
	if params.BaseURL != "" {
		baseURL = params.BaseURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+params.APIKey)

	return httpReq, nil
}

// buildChatRequest converts unified call params to the OpenAI wire format
func (a *Adapter) buildChatRequest(params *providers.CallParams, stream bool) *chatRequest {
	chatReq := &chatRequest{
		Model:    params.ModelID,
		Messages: make([]chatMessage, len(params.Messages)),
		Stream:   stream,
	}

	for i, msg := range params.Messages {
		chatReq.Messages[i] = chatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	if params.MaxTokens > 0 {
		chatReq.MaxTokens = &params.MaxTokens
	}
	if params.Temperature > 0 {
		chatReq.Temperature = &params.Temperature
	}

	return chatReq
}

// handleErrorResponse maps OpenAI error responses to ProviderError
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, statusCode >= 500 || statusCode == 429, err)
	}

	retryable := statusCode >= 500 || statusCode == 429

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// OpenAI-specific request/response types

type chatRequest struct {
	Model       string          `json:"model"`
	Messages    []chatMessage   `json:"messages"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Tools       []chatTool      `json:"tools,omitempty"`
	ToolChoice  *chatToolChoice `json:"tool_choice,omitempty"`
}

type chatMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	ToolCalls []chatToolCall `json:"tool_calls,omitempty"`
}

type chatTool struct {
	Type     string           `json:"type"`
	Function chatToolFunction `json:"function"`
}

type chatToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatToolChoice struct {
	Type     string                 `json:"type"`
	Function chatToolChoiceFunction `json:"function"`
}

type chatToolChoiceFunction struct {
	Name string `json:"name"`
}

type chatToolCall struct {
	ID       string               `json:"id"`
	Type     string               `json:"type"`
	Function chatToolCallFunction `json:"function"`
}

type chatToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (u chatUsage) toUnified() *providers.Usage {
	return &providers.Usage{
		InputTokens:  u.PromptTokens,
		OutputTokens: u.CompletionTokens,
	}
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}
