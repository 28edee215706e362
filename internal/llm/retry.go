package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/chainguard-dev/clog"
)

// RetryConfig bounds how transient completion failures are retried.
type RetryConfig struct {
	// MaxRetries is the number of calls made after the first. 0 disables retries.
	MaxRetries int
	// BaseBackoff is the delay before the first retry. It doubles on each retry.
	BaseBackoff time.Duration
	// MaxBackoff caps the doubled delay.
	MaxBackoff time.Duration
	// MaxJitter is the upper bound of the random delay added to each wait.
	MaxJitter time.Duration
}

// Validate rejects negative counts and durations.
func (c RetryConfig) Validate() error {
	switch {
	case c.MaxRetries < 0:
		return fmt.Errorf("retries must be >= 0, got %d", c.MaxRetries)
	case c.BaseBackoff < 0, c.MaxBackoff < 0, c.MaxJitter < 0:
		return errors.New("retry delays must be >= 0")
	}
	return nil
}

// DefaultRetryConfig returns the retry configuration used by the CLI and services.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: time.Second,
		MaxBackoff:  30 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// wait returns the delay before retry number n, counting from 1.
func (c RetryConfig) wait(n int) time.Duration {
	d := c.MaxBackoff
	if shift := n - 1; shift < 32 {
		d = min(c.BaseBackoff<<shift, c.MaxBackoff)
	}
	if c.MaxJitter > 0 {
		d += rand.N(c.MaxJitter)
	}
	return d
}

// RetryWithBackoff calls fn until it succeeds, returns an error isRetryable
// rejects, or cfg.MaxRetries retries have been spent. Waits between calls
// grow exponentially and end early when ctx is done.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, operation string, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	if err := cfg.Validate(); err != nil {
		return zero, fmt.Errorf("%s: %w", operation, err)
	}

	for retry := 0; ; retry++ {
		result, err := fn()
		switch {
		case err == nil:
			return result, nil
		case ctx.Err() != nil:
			return result, ctx.Err()
		case !isRetryable(err):
			return result, err
		case retry == cfg.MaxRetries:
			return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, err)
		}

		delay := cfg.wait(retry + 1)
		clog.FromContext(ctx).Warn("Transient model error, retrying",
			"operation", operation,
			"retry", retry+1,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
			"error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return result, ctx.Err()
		case <-timer.C:
		}
	}
}

// IsRetryable reports whether err is a transient provider failure.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return isRetryableOpenAIError(err) || isRetryableAnthropicError(err) || isRetryableGeminiError(err)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529: // overloaded
		return true
	}
	return false
}

type retrying struct {
	Provider
	cfg RetryConfig
}

// WithRetry wraps p so transient failures are retried according to cfg.
func WithRetry(p Provider, cfg RetryConfig) Provider {
	return &retrying{Provider: p, cfg: cfg}
}

func (r *retrying) Complete(ctx context.Context, req Request) (*Response, error) {
	return RetryWithBackoff(ctx, r.cfg, r.Provider.Name()+".complete", IsRetryable, func() (*Response, error) {
		return r.Provider.Complete(ctx, req)
	})
}
