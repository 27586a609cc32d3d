package llm_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/p-blackswan/colony/internal/errors"
	"github.com/p-blackswan/colony/internal/llm"
	"github.com/p-blackswan/colony/internal/retry"
)

func TestAnthropicGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		w.Write([]byte(`{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	p := llm.NewAnthropicProvider("test-key", llm.WithBaseURL(srv.URL))
	text, err := p.Generate(context.Background(), "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestAnthropicGenerateRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"type":"rate_limit_error","message":"slow down"}}`))
	}))
	defer srv.Close()

	p := llm.NewAnthropicProvider("test-key", llm.WithBaseURL(srv.URL))
	_, err := p.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, cerrors.IsRetryable(err), "429 must be classified retryable")
}

func TestAnthropicGenerateClientTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Write([]byte(`{"content":[{"type":"text","text":"late"}]}`))
	}))
	defer srv.Close()
	defer close(release)

	p := llm.NewAnthropicProvider("test-key",
		llm.WithBaseURL(srv.URL),
		llm.WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond}))

	_, err := p.Generate(context.Background(), "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, cerrors.ErrTimeout)
	assert.True(t, cerrors.IsRetryable(err), "client timeout must be classified retryable")
}

func TestAnthropicGenerateCancelledNotRetryable(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.Write([]byte(`{"content":[]}`))
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	p := llm.NewAnthropicProvider("test-key", llm.WithBaseURL(srv.URL))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := p.Generate(ctx, "x")
	require.Error(t, err)
	assert.NotErrorIs(t, err, cerrors.ErrTimeout)
	assert.False(t, cerrors.IsRetryable(err))
}

func TestWithRetryRecovers(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}],"stop_reason":"end_turn"}`))
	}))
	defer srv.Close()

	inner := llm.NewAnthropicProvider("test-key", llm.WithBaseURL(srv.URL))
	p := llm.WithRetry(inner, retry.Config{MaxAttempts: 3, BaseDelay: 1, MaxDelay: 1})

	text, err := p.Generate(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 2, calls)
}
