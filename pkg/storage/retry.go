package storage

import (
	"context"
	"time"
)

// RetryPolicy controls how backend operations are retried.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first
	// (default: 3).
	MaxAttempts int
	// InitialBackoff is the delay before the first retry; it doubles on each
	// subsequent attempt (default: 200ms).
	InitialBackoff time.Duration
	// Retryable decides whether an error is worth retrying
	// (default: IsTransient).
	Retryable func(error) bool
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 200 * time.Millisecond
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// retryBackend decorates another Backend with bounded retries. Retry policy
// lives here, not in the Manager, so it is swappable without touching
// manager logic.
type retryBackend struct {
	inner  Backend
	policy RetryPolicy
}

// WithRetry wraps backend so that transient failures are retried with
// doubling backoff. Zero-value policy fields take defaults.
func WithRetry(backend Backend, policy RetryPolicy) Backend {
	return &retryBackend{inner: backend, policy: policy.withDefaults()}
}

func (b *retryBackend) do(ctx context.Context, op func() error) error {
	backoff := b.policy.InitialBackoff
	var err error
	for attempt := 1; ; attempt++ {
		err = op()
		if err == nil || !b.policy.Retryable(err) || attempt >= b.policy.MaxAttempts {
			return err
		}
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (b *retryBackend) Put(ctx context.Context, key string, data []byte) error {
	return b.do(ctx, func() error { return b.inner.Put(ctx, key, data) })
}

func (b *retryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.do(ctx, func() error {
		var opErr error
		data, opErr = b.inner.Get(ctx, key)
		return opErr
	})
	return data, err
}

func (b *retryBackend) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.do(ctx, func() error {
		var opErr error
		keys, opErr = b.inner.List(ctx, prefix)
		return opErr
	})
	return keys, err
}

func (b *retryBackend) Delete(ctx context.Context, key string) error {
	return b.do(ctx, func() error { return b.inner.Delete(ctx, key) })
}

func (b *retryBackend) Location(key string) string {
	return b.inner.Location(key)
}
