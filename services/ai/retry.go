package ai

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yamanotatsu/task-master-api/services/providers"
)

const (
	defaultMaxRetries = 2
	defaultBaseDelay  = time.Second
)

// callFunc performs a single provider call attempt.
type callFunc func(ctx context.Context) (*providers.Response, error)

// retryExecutor retries a single provider call with exponential backoff.
// Only errors classified as retryable trigger another attempt; everything
// else surfaces immediately to the fallback loop.
type retryExecutor struct {
	maxRetries int
	baseDelay  time.Duration
	debug      bool
	logger     *zap.Logger

	// sleep is swapped in tests to observe backoff without waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetryExecutor(logger *zap.Logger, debug bool) *retryExecutor {
	return &retryExecutor{
		maxRetries: defaultMaxRetries,
		baseDelay:  defaultBaseDelay,
		debug:      debug,
		logger:     logger,
		sleep:      sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs fn up to maxRetries+1 times. The delay before retry n is
// baseDelay doubled for each prior retry: 1s, then 2s with the defaults.
func (r *retryExecutor) do(ctx context.Context, role Role, providerName, modelID string, fn callFunc) (*providers.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if r.debug {
			r.logger.Debug("provider call attempt",
				zap.String("role", string(role)),
				zap.String("provider", providerName),
				zap.String("model", modelID),
				zap.Int("attempt", attempt+1),
			)
		}

		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if classify(err) != ErrKindRetryable || attempt == r.maxRetries {
			break
		}

		delay := r.baseDelay << attempt
		if r.debug {
			r.logger.Debug("retrying after transient provider error",
				zap.String("provider", providerName),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}
