package providers

import (
	"context"
	"time"

	"github.com/agentsql/bridge/internal/retry"
)

// BaseProvider holds shared retry configuration for LLM providers.
type BaseProvider struct {
	name       string
	maxRetries int
	retryDelay time.Duration
}

// NewBaseProvider creates a base provider with sane defaults.
func NewBaseProvider(name string, maxRetries int, retryDelay time.Duration) BaseProvider {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return BaseProvider{
		name:       name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// Retry executes op with exponential backoff and jitter, stopping as soon as
// isRetryable reports an error should not be retried. Delegates to
// retry.Do, which only retries errors not wrapped as retry.Permanent, so a
// non-retryable error is wrapped before being handed off.
func (b *BaseProvider) Retry(ctx context.Context, isRetryable func(error) bool, op func() error) error {
	if op == nil {
		return nil
	}
	config := retry.Exponential(b.maxRetries, b.retryDelay, 30*time.Second)
	result := retry.Do(ctx, config, func() error {
		err := op()
		if err == nil {
			return nil
		}
		if isRetryable == nil || !isRetryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if permanent, ok := result.Err.(*retry.PermanentError); ok {
		return permanent.Unwrap()
	}
	return result.Err
}
