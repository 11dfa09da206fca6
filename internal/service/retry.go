package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retryOnConflict reruns fn with exponential backoff while it fails with an
// error matched by retryable, up to maxRetries attempts beyond the first.
// Any other error stops the retries and is returned as-is.
func retryOnConflict(ctx context.Context, maxRetries int, retryable func(error) bool, fn func(ctx context.Context) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(maxRetries)), ctx)
	return backoff.Retry(func() error {
		err := fn(ctx)
		if err != nil && !retryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
