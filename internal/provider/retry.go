package provider

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// RetryConfig bounds the retry-with-backoff loop around provider calls.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

// DefaultRetryConfig returns the standard backoff curve with the given
// retry ceiling.
func DefaultRetryConfig(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Second,
		MaxDelay:   30 * time.Second,
		Multiplier: 2.0,
	}
}

// Caller wraps a Provider with per-attempt timeouts and transient-error
// retries. Commands call providers through it rather than directly.
type Caller struct {
	Provider Provider
	Timeout  time.Duration
	Retry    RetryConfig
}

// Generate runs one completion with retries on transient failures.
func (c Caller) Generate(ctx context.Context, req Request) (string, error) {
	return retryTransient(ctx, c.Retry, func() (string, error) {
		attemptCtx, cancel := c.attemptContext(ctx)
		defer cancel()
		return c.Provider.Generate(attemptCtx, req)
	})
}

// Embed embeds texts with retries on transient failures.
func (c Caller) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return retryTransient(ctx, c.Retry, func() ([][]float32, error) {
		attemptCtx, cancel := c.attemptContext(ctx)
		defer cancel()
		return c.Provider.Embed(attemptCtx, texts)
	})
}

func (c Caller) attemptContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, c.Timeout)
}

// retryTransient calls fn up to cfg.MaxRetries+1 times, backing off between
// attempts. Non-transient errors return immediately.
func retryTransient[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error

	delay := cfg.BaseDelay
	if delay <= 0 {
		delay = time.Second
	}

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Debug("retrying provider call", "attempt", attempt, "delay", delay, "error", lastErr)
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * cfg.Multiplier)
			if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if !IsTransient(err) {
			return zero, err
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
	}
	return zero, lastErr
}

// IsTransient reports whether err is worth retrying: rate limits, server
// errors, and timeouts. Auth and request errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	msg := err.Error()
	for _, marker := range []string{
		"429", "500", "502", "503", "529",
		"rate limit", "overloaded", "timeout", "temporarily unavailable",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
