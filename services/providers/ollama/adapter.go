package ollama

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
	defaultBaseURL = "http://localhost:11434"
)

// Adapter implements the providers.Adapter interface for a local Ollama
// instance. Ollama requires no API key; CallParams.APIKey is ignored.
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

// New creates a new Ollama adapter
func New(opts ...Option) *Adapter {
	a := &Adapter{
		baseURL: defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // local inference can be slow
		},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Name returns the provider name
func (a *Adapter) Name() string {
	return "ollama"
}

// GenerateText performs a chat request against the local instance
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

	return &providers.Response{
		Text:  chatResp.Message.Content,
		Usage: chatResp.toUsage(),
	}, nil
}

// StreamText starts a streaming chat request and returns the open NDJSON body
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

// GenerateObject performs a structured completion using Ollama's format field
func (a *Adapter) GenerateObject(ctx context.Context, params *providers.CallParams) (*providers.Response, error) {
	chatReq := a.buildChatRequest(params, false)
	chatReq.Format = params.Schema

	respBody, err := a.post(ctx, params, chatReq)
	if err != nil {
		return nil, err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, providers.NewProviderError(a.Name(), "UNMARSHAL_ERROR", "Failed to unmarshal response", 0, false, err)
	}

	content := chatResp.Message.Content
	if !json.Valid([]byte(content)) {
		return nil, providers.NewProviderError(a.Name(), "INVALID_OBJECT",
			"Model "+params.ModelID+" returned output that is not valid JSON", 0, false, nil)
	}

	return &providers.Response{
		Object: json.RawMessage(content),
		Usage:  chatResp.toUsage(),
	}, nil
}

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

func (a *Adapter) newRequest(ctx context.Context, params *providers.CallParams, body []byte) (*http.Request, error) {
	baseURL := a.baseURL
	if params.BaseURL != "" {
		baseURL = params.BaseURL
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, providers.NewProviderError(a.Name(), "REQUEST_ERROR", "Failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	return httpReq, nil
}

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

	if params.Temperature > 0 || params.MaxTokens > 0 {
		chatReq.Options = &chatOptions{}
		if params.Temperature > 0 {
			chatReq.Options.Temperature = &params.Temperature
		}
		if params.MaxTokens > 0 {
			chatReq.Options.NumPredict = &params.MaxTokens
		}
	}

	return chatReq
}

func (a *Adapter) handleErrorResponse(statusCode int, body []byte) error {
	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error == "" {
		return providers.NewProviderError(a.Name(), "UNKNOWN_ERROR", string(body), statusCode, statusCode >= 500, err)
	}

	return providers.NewProviderError(
		a.Name(),
		"OLLAMA_ERROR",
		errResp.Error,
		statusCode,
		statusCode >= 500,
		errors.New(errResp.Error),
	)
}

// Ollama-specific request/response types

type chatRequest struct {
	Model    string          `json:"model"`
	Messages []chatMessage   `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   json.RawMessage `json:"format,omitempty"` // JSON schema for structured output
	Options  *chatOptions    `json:"options,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	NumPredict  *int     `json:"num_predict,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	Done            bool        `json:"done"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
}

func (r *chatResponse) toUsage() *providers.Usage {
	if r.PromptEvalCount == 0 && r.EvalCount == 0 {
		return nil
	}
	return &providers.Usage{
		InputTokens:  r.PromptEvalCount,
		OutputTokens: r.EvalCount,
	}
}

type errorResponse struct {
	Error string `json:"error"`
}
