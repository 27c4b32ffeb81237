package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	openai "github.com/sashabaranov/go-openai"
)

func fastRetry(maxRetries int) RetryConfig {
	return RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}))
	assert.True(t, IsTransient(&openai.APIError{HTTPStatusCode: http.StatusInternalServerError}))
	assert.False(t, IsTransient(&openai.APIError{HTTPStatusCode: http.StatusUnauthorized}))
	assert.False(t, IsTransient(&openai.APIError{HTTPStatusCode: http.StatusBadRequest}))
	assert.True(t, IsTransient(errors.New("503 service unavailable")))
	assert.True(t, IsTransient(errors.New("rate limit exceeded")))
	assert.True(t, IsTransient(errors.New("model overloaded, try again")))
	assert.False(t, IsTransient(errors.New("invalid request body")))
}

func TestCallerRetriesTransientFailures(t *testing.T) {
	calls := 0
	fake := &fakeProvider{generateFn: func(req Request) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("rate limit exceeded")
		}
		return "answer", nil
	}}

	caller := Caller{Provider: fake, Retry: fastRetry(2)}
	out, err := caller.Generate(context.Background(), Request{Prompt: "q"})
	require.NoError(t, err)
	assert.Equal(t, "answer", out)
	assert.Equal(t, 3, calls)
}

func TestCallerStopsOnPermanentError(t *testing.T) {
	permanent := errors.New("invalid api key")
	fake := &fakeProvider{generateFn: func(req Request) (string, error) {
		return "", permanent
	}}

	caller := Caller{Provider: fake, Retry: fastRetry(2)}
	_, err := caller.Generate(context.Background(), Request{Prompt: "q"})
	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, fake.generateCalls)
}

func TestCallerExhaustsRetries(t *testing.T) {
	transient := errors.New("model overloaded")
	fake := &fakeProvider{generateFn: func(req Request) (string, error) {
		return "", transient
	}}

	caller := Caller{Provider: fake, Retry: fastRetry(2)}
	_, err := caller.Generate(context.Background(), Request{Prompt: "q"})
	require.ErrorIs(t, err, transient)
	assert.Equal(t, 3, fake.generateCalls)
}

func TestCallerEmbedRetries(t *testing.T) {
	calls := 0
	fake := &fakeProvider{embedFn: func(texts []string) ([][]float32, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("502 bad gateway")
		}
		return [][]float32{{1, 0, 0, 0}}, nil
	}}

	caller := Caller{Provider: fake, Retry: fastRetry(1)}
	vecs, err := caller.Embed(context.Background(), []string{"text"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, 2, calls)
}

func TestCallerRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeProvider{generateFn: func(req Request) (string, error) {
		cancel()
		return "", errors.New("timeout waiting for upstream")
	}}

	caller := Caller{Provider: fake, Retry: fastRetry(2)}
	_, err := caller.Generate(ctx, Request{Prompt: "q"})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, fake.generateCalls)
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig(2)
	assert.Equal(t, 2, cfg.MaxRetries)
	assert.Equal(t, time.Second, cfg.BaseDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
}
