package ai

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ErrKindPermanent},
		{"rate limit phrase", errors.New("Rate limit exceeded, try again later"), ErrKindRetryable},
		{"overloaded phrase", errors.New("the service is Overloaded"), ErrKindRetryable},
		{"timeout phrase", errors.New("request timeout after 30s"), ErrKindRetryable},
		{"network phrase", errors.New("network error: connection reset"), ErrKindRetryable},
		{"temporarily unavailable", errors.New("service temporarily unavailable"), ErrKindRetryable},
		{"status 429", providers.NewProviderError("openai", "RATE_LIMITED", "slow down", 429, false, nil), ErrKindRetryable},
		{"status 503", providers.NewProviderError("openai", "UPSTREAM", "bad gateway", 503, false, nil), ErrKindRetryable},
		{"retryable flag", providers.NewProviderError("ollama", "CONN", "dial refused", 0, true, nil), ErrKindRetryable},
		{"auth failure", providers.NewProviderError("openai", "AUTH", "invalid api key", 401, false, nil), ErrKindPermanent},
		{"plain error", errors.New("model not found"), ErrKindPermanent},
		{"tool use unsupported", errors.New("this model does not support tool use"), ErrKindCapability},
		{"tool_use block rejected", errors.New("unexpected tool_use content block"), ErrKindCapability},
		{"function calling unsupported", errors.New("function calling is not available for this model"), ErrKindCapability},
		{"capability wins over retryable", errors.New("tool use request was rate limited"), ErrKindCapability},
		{"wrapped provider error", fmt.Errorf("call failed: %w",
			providers.NewProviderError("anthropic", "OVERLOADED", "busy", 529, false, nil)), ErrKindRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.err))
		})
	}
}

func TestCleanMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "plain error",
			err:  errors.New("something went wrong"),
			want: "something went wrong",
		},
		{
			name: "provider error uses short message",
			err:  providers.NewProviderError("openai", "RATE_LIMITED", "Rate limit reached for gpt-4o", 429, true, nil),
			want: "Rate limit reached for gpt-4o",
		},
		{
			name: "json envelope",
			err:  errors.New(`openai API error (status 400): {"error":{"message":"Invalid schema for tool","type":"invalid_request_error"}}`),
			want: "Invalid schema for tool",
		},
		{
			name: "doubly nested envelope",
			err:  errors.New(`{"error":{"error":{"message":"model is overloaded"},"code":529}}`),
			want: "model is overloaded",
		},
		{
			name: "top level message field",
			err:  errors.New(`{"message":"missing authentication header"}`),
			want: "missing authentication header",
		},
		{
			name: "malformed json falls through",
			err:  errors.New(`unexpected { in response`),
			want: "unexpected { in response",
		},
		{
			name: "nil",
			err:  nil,
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanMessage(tt.err))
		})
	}
}
