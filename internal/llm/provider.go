// Package llm is the boundary to the text-generation capability. The core
// treats generation as an opaque async call that may fail (network, timeout,
// quota) — callers either retry through the Retrying decorator or surface
// the failure as a failed act.
package llm

import (
	"context"

	"github.com/p-blackswan/colony/internal/retry"
)

// Provider is the core abstraction for text-generation backends.
type Provider interface {
	// Generate sends the prompt and waits for the raw completion text.
	Generate(ctx context.Context, prompt string) (string, error)

	// ModelID returns the current model identifier string.
	ModelID() string
}

// Retrying wraps a Provider with exponential-backoff retries for transient
// failures (rate limits, 5xx, timeouts). Non-retryable errors pass through.
type Retrying struct {
	inner Provider
	cfg   retry.Config
}

// WithRetry decorates p with the given retry policy.
func WithRetry(p Provider, cfg retry.Config) *Retrying {
	return &Retrying{inner: p, cfg: cfg}
}

func (r *Retrying) Generate(ctx context.Context, prompt string) (string, error) {
	return retry.DoValue(ctx, r.cfg, func(ctx context.Context) (string, error) {
		return r.inner.Generate(ctx, prompt)
	})
}

func (r *Retrying) ModelID() string { return r.inner.ModelID() }
