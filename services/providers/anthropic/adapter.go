package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
)

// Adapter implements the providers.Adapter interface for Anthropic
type Adapter struct {
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

// New creates a new Anthropic adapter
func New(opts ...Option) *Adapter {
	a := &Adapter{
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
	return "anthropic"
}

// GenerateText performs a messages request
func (a *Adapter) GenerateText(ctx context.Context, params *providers.CallParams) (*providers.Response, error) {
	msgReq := a.buildMessagesRequest(params, false)

	respBody, err := a.post(ctx, params, msgReq)
	if err != nil {
		return nil, err
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", 0, false, err)
	}

	text := ""
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, providers.NewProviderError(a.Name(), "EMPTY_RESPONSE", "Anthropic returned no text content", 0, false, nil)
	}

	return &providers.Response{
		Text:  text,
		Usage: msgResp.Usage.toUnified(),
	}, nil
}

// StreamText starts a streaming messages request and returns the open SSE body
func (a *Adapter) StreamText(ctx context.Context, params *providers.CallParams) (*providers.Response, error) {
	msgReq := a.buildMessagesRequest(params, true)

	body, err := json.Marshal(msgReq)
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

// GenerateObject performs a schema-constrained completion via forced tool use
func (a *Adapter) GenerateObject(ctx context.Context, params *providers.CallParams) (*providers.Response, error) {
	objectName := params.ObjectName
	if objectName == "" {
		objectName = "generated_object"
	}

	msgReq := a.buildMessagesRequest(params, false)
	msgReq.Tools = []tool{
		{
			Name:        objectName,
			Description: "Produce the requested structured output",
			InputSchema: params.Schema,
		},
	}
	msgReq.ToolChoice = &toolChoice{Type: "tool", Name: objectName}

	respBody, err := a.post(ctx, params, msgReq)
	if err != nil {
		return nil, err
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(respBody, &msgResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", 0, false, err)
	}

	for _, block := range msgResp.Content {
		if block.Type == "tool_use" && block.Name == objectName {
			return &providers.Response{
				Object: block.Input,
				Usage:  msgResp.Usage.toUnified(),
			}, nil
		}
	}

	return nil, providers.NewProviderError(a.Name(), "NO_TOOL_USE",
		"Model "+params.ModelID+" returned no tool_use block for structured output", 0, false, nil)
}

// post marshals the request, executes it, and returns the response body or a ProviderError
func (a *Adapter) post(ctx context.Context, params *providers.CallParams, msgReq *messagesRequest) ([]byte, error) {
	body, err := json.Marshal(msgReq)
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

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", params.APIKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	return httpReq, nil
}

// buildMessagesRequest converts unified call params to the Anthropic wire format.
// Anthropic takes the system prompt as a top-level field, not a message.
func (a *Adapter) buildMessagesRequest(params *providers.CallParams, stream bool) *messagesRequest {
	msgReq := &messagesRequest{
		Model:     params.ModelID,
		MaxTokens: params.MaxTokens,
		Stream:    stream,
	}

	if msgReq.MaxTokens == 0 {
		msgReq.MaxTokens = 4096
	}
	if params.Temperature > 0 {
		msgReq.Temperature = &params.Temperature
	}

	for _, msg := range params.Messages {
		if msg.Role == "system" {
			msgReq.System = msg.Content
			continue
		}
		msgReq.Messages = append(msgReq.Messages, message{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return msgReq
}

// handleErrorResponse maps Anthropic error responses to ProviderError
func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, statusCode >= 500 || statusCode == 429, err)
	}

	// 529 is Anthropic's "overloaded" status
	retryable := statusCode >= 500 || statusCode == 429 || errResp.Error.Type == "overloaded_error"

	return providers.NewProviderError(
		a.Name(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// Anthropic-specific request/response types

type messagesRequest struct {
	Model       string      `json:"model"`
	MaxTokens   int         `json:"max_tokens"`
	System      string      `json:"system,omitempty"`
	Messages    []message   `json:"messages"`
	Temperature *float64    `json:"temperature,omitempty"`
	Stream      bool        `json:"stream,omitempty"`
	Tools       []tool      `json:"tools,omitempty"`
	ToolChoice  *toolChoice `json:"tool_choice,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema"`
}

type toolChoice struct {
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

type messagesResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Usage      usage          `json:"usage"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

type usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

func (u usage) toUnified() *providers.Usage {
	return &providers.Usage{
		InputTokens:  u.InputTokens,
		OutputTokens: u.OutputTokens,
	}
}

type errorResponse struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
