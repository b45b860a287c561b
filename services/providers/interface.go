package providers

import (
	"context"
	"encoding/json"
	"io"
)

// ServiceType identifies one of the three AI operations an adapter can serve
type ServiceType string

const (
	ServiceGenerateText   ServiceType = "generateText"
	ServiceStreamText     ServiceType = "streamText"
	ServiceGenerateObject ServiceType = "generateObject"
)

// Adapter is the unified per-provider interface. Each backing AI service
// exposes the three operations with the same call signature.
type Adapter interface {
	// Name returns the lowercase provider name (e.g., "openai", "anthropic")
	Name() string

	// GenerateText performs a single text completion
	GenerateText(ctx context.Context, params *CallParams) (*Response, error)

	// StreamText starts a streaming completion and returns an open stream handle
	StreamText(ctx context.Context, params *CallParams) (*Response, error)

	// GenerateObject performs a structured (schema-constrained) completion
	GenerateObject(ctx context.Context, params *CallParams) (*Response, error)
}

// Message is a single prompt message. Role is "system" or "user".
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CallParams is the transient per-attempt value handed to an adapter.
// It is assembled immediately before the call and discarded after it returns.
type CallParams struct {
	APIKey      string
	ModelID     string
	MaxTokens   int
	Temperature float64
	BaseURL     string    // optional endpoint override
	Messages    []Message // system prompt (optional) followed by the user prompt

	// Structured generation
	Schema     json.RawMessage // JSON schema for GenerateObject
	ObjectName string
}

// Usage holds token accounting for a completed call. Streaming responses
// may omit it entirely.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Response is the unified adapter output. Exactly one of Text, Object, or
// Stream is populated depending on the requested service type.
type Response struct {
	Text   string
	Object json.RawMessage
	Stream io.ReadCloser

	Usage *Usage
}

// ProviderError represents an error from a provider
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is the error code
	Code string

	// Message is the error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Retryable indicates if the request can be retried
	Retryable bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, retryable bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:   provider,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  retryable,
		Cause:      cause,
	}
}

// IsRetryable checks if an error was marked retryable by its adapter
func IsRetryable(err error) bool {
	if provErr, ok := err.(*ProviderError); ok {
		return provErr.Retryable
	}
	return false
}
