package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter is a minimal Adapter implementation for registry tests
type fakeAdapter struct {
	name string
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) GenerateText(ctx context.Context, params *CallParams) (*Response, error) {
	return &Response{Text: "ok"}, nil
}

func (f *fakeAdapter) StreamText(ctx context.Context, params *CallParams) (*Response, error) {
	return &Response{}, nil
}

func (f *fakeAdapter) GenerateObject(ctx context.Context, params *CallParams) (*Response, error) {
	return &Response{Object: []byte(`{}`)}, nil
}

func TestRegistry_Register(t *testing.T) {
	registry := NewRegistry()

	err := registry.Register(&fakeAdapter{name: "openai"})
	require.NoError(t, err)

	t.Run("duplicate registration fails", func(t *testing.T) {
		err := registry.Register(&fakeAdapter{name: "openai"})
		assert.ErrorIs(t, err, ErrProviderAlreadyRegistered)
	})

	t.Run("nil adapter fails", func(t *testing.T) {
		err := registry.Register(nil)
		assert.Error(t, err)
	})

	t.Run("empty name fails", func(t *testing.T) {
		err := registry.Register(&fakeAdapter{name: ""})
		assert.Error(t, err)
	})
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&fakeAdapter{name: "anthropic"}))

	t.Run("found", func(t *testing.T) {
		adapter, err := registry.Get("anthropic")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", adapter.Name())
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		adapter, err := registry.Get("Anthropic")
		require.NoError(t, err)
		assert.Equal(t, "anthropic", adapter.Name())
	})

	t.Run("not found", func(t *testing.T) {
		_, err := registry.Get("missing")
		assert.ErrorIs(t, err, ErrProviderNotFound)
	})
}

func TestRegistry_HasAndList(t *testing.T) {
	registry := NewRegistry()
	require.NoError(t, registry.Register(&fakeAdapter{name: "openai"}))
	require.NoError(t, registry.Register(&fakeAdapter{name: "ollama"}))

	assert.True(t, registry.Has("openai"))
	assert.True(t, registry.Has("OLLAMA"))
	assert.False(t, registry.Has("anthropic"))

	names := registry.List()
	assert.Len(t, names, 2)
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "ollama")
}

func TestIsRetryable(t *testing.T) {
	retryable := NewProviderError("openai", "RATE_LIMIT", "rate limit exceeded", 429, true, nil)
	permanent := NewProviderError("openai", "AUTH", "invalid api key", 401, false, nil)

	assert.True(t, IsRetryable(retryable))
	assert.False(t, IsRetryable(permanent))
	assert.False(t, IsRetryable(assert.AnError))
}
