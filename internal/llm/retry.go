package llm

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

// Do calls fn, retrying only while it fails with a rate-limit or overload
// error. It makes at most MaxRetries+1 calls; when the budget runs out the
// last provider error is returned unchanged. Any other error is returned
// immediately.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	maxRetries := max(cfg.MaxRetries, 0)

	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if !IsTransient(err) || attempt > maxRetries {
			return zero, err
		}

		wait := cfg.delay(attempt, err)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, wait, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(wait):
		}
	}
}

// delay computes InitialDelay * 2^(attempt-1) plus uniform jitter in
// [0, Jitter). A provider supplied Retry-After acts as a floor.
func (c RetryConfig) delay(attempt int, err error) time.Duration {
	wait := c.InitialDelay << (attempt - 1)
	if wait < 0 || (c.MaxDelay > 0 && wait > c.MaxDelay) {
		wait = c.MaxDelay
	}
	if c.Jitter > 0 {
		wait += time.Duration(rand.Int64N(int64(c.Jitter)))
	}

	var rl *ErrRateLimit
	if errors.As(err, &rl) && rl.RetryAfter > wait {
		wait = rl.RetryAfter
	}
	return wait
}

// RetryProvider is a decorator that retries rate-limited calls with
// exponential backoff and jitter.
type RetryProvider struct {
	inner  Provider
	config RetryConfig
}

// WithRetry wraps a Provider with retry logic.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	return &RetryProvider{inner: p, config: cfg}
}

func (r *RetryProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	return Do(ctx, r.config, func(ctx context.Context) (*Response, error) {
		return r.inner.Generate(ctx, req)
	})
}

func (r *RetryProvider) ModelID() string {
	return r.inner.ModelID()
}
