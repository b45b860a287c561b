package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

// instrumentedExecutor records requested backoff delays instead of sleeping.
func instrumentedExecutor() (*retryExecutor, *[]time.Duration) {
	delays := &[]time.Duration{}
	r := newRetryExecutor(zap.NewNop(), true)
	r.sleep = func(_ context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	return r, delays
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	r, delays := instrumentedExecutor()

	calls := 0
	resp, err := r.do(context.Background(), RoleMain, "openai", "gpt-4o", func(context.Context) (*providers.Response, error) {
		calls++
		return &providers.Response{Text: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestRetry_TransientThenSuccess(t *testing.T) {
	r, delays := instrumentedExecutor()

	calls := 0
	resp, err := r.do(context.Background(), RoleMain, "openai", "gpt-4o", func(context.Context) (*providers.Response, error) {
		calls++
		if calls < 3 {
			return nil, providers.NewProviderError("openai", "RATE_LIMITED", "rate limit", 429, true, nil)
		}
		return &providers.Response{Text: "ok"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
}

func TestRetry_ExhaustsRetryBudget(t *testing.T) {
	r, delays := instrumentedExecutor()

	calls := 0
	transient := providers.NewProviderError("anthropic", "OVERLOADED", "overloaded", 529, false, nil)
	_, err := r.do(context.Background(), RoleFallback, "anthropic", "claude-3-7-sonnet-20250219", func(context.Context) (*providers.Response, error) {
		calls++
		return nil, transient
	})

	require.Error(t, err)
	assert.Equal(t, transient, err)
	assert.Equal(t, 3, calls)
	assert.Len(t, *delays, 2)
}

func TestRetry_PermanentErrorFailsImmediately(t *testing.T) {
	r, delays := instrumentedExecutor()

	calls := 0
	_, err := r.do(context.Background(), RoleMain, "openai", "gpt-4o", func(context.Context) (*providers.Response, error) {
		calls++
		return nil, providers.NewProviderError("openai", "AUTH", "invalid api key", 401, false, nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestRetry_ContextCancelledDuringBackoff(t *testing.T) {
	r := newRetryExecutor(zap.NewNop(), false)
	r.sleep = func(ctx context.Context, _ time.Duration) error {
		return context.Canceled
	}

	calls := 0
	_, err := r.do(context.Background(), RoleMain, "openai", "gpt-4o", func(context.Context) (*providers.Response, error) {
		calls++
		return nil, errors.New("timeout contacting upstream")
	})

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
