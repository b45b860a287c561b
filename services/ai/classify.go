package ai

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

// ErrorKind buckets a provider call failure for the retry and fallback logic.
type ErrorKind int

const (
	// ErrKindPermanent covers failures that retrying the same provider will
	// not fix, such as auth rejections or malformed requests.
	ErrKindPermanent ErrorKind = iota
	// ErrKindRetryable covers transient failures worth retrying in place.
	ErrKindRetryable
	// ErrKindCapability means the selected model cannot perform the requested
	// operation at all, e.g. no tool calling support for structured output.
	ErrKindCapability
)

var retryablePhrases = []string{
	"rate limit",
	"overloaded",
	"service temporarily unavailable",
	"timeout",
	"network error",
}

var capabilityPhrases = []string{
	"tool use",
	"tool_use",
	"function calling",
}

// classify assigns an ErrorKind to a provider call failure. Capability
// failures are checked first so they are never mistaken for retryable ones.
func classify(err error) ErrorKind {
	if err == nil {
		return ErrKindPermanent
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range capabilityPhrases {
		if strings.Contains(msg, phrase) {
			return ErrKindCapability
		}
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) {
		if provErr.Retryable || provErr.StatusCode == 429 || provErr.StatusCode >= 500 {
			return ErrKindRetryable
		}
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(msg, phrase) {
			return ErrKindRetryable
		}
	}
	return ErrKindPermanent
}

// nestedError mirrors the error envelope most provider HTTP APIs return.
type nestedError struct {
	Error struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	} `json:"error"`
	Message string `json:"message"`
}

// cleanMessage extracts a short human-readable message from a provider
// failure, unwrapping typed provider errors and JSON error envelopes that
// providers sometimes embed verbatim in the message body.
func cleanMessage(err error) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	var provErr *providers.ProviderError
	if errors.As(err, &provErr) && provErr.Message != "" {
		msg = provErr.Message
	}

	if extracted := extractJSONMessage(msg); extracted != "" {
		msg = extracted
	}
	return strings.TrimSpace(msg)
}

func extractJSONMessage(msg string) string {
	start := strings.IndexByte(msg, '{')
	if start < 0 {
		return ""
	}
	var env nestedError
	if err := json.Unmarshal([]byte(msg[start:]), &env); err != nil {
		return ""
	}
	switch {
	case env.Error.Error.Message != "":
		return env.Error.Error.Message
	case env.Error.Message != "":
		return env.Error.Message
	case env.Message != "":
		return env.Message
	}
	return ""
}
