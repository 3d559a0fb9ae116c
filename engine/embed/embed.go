// Package embed defines the embedding capability consumed by the engine and
// the caching/resilience wrappers around a concrete provider.
package embed

import (
	"context"
	"fmt"
	"time"

	"github.com/brownbiotech/longevita/pkg/fn"
	"github.com/brownbiotech/longevita/pkg/resilience"
)

// Embedder converts text into a fixed-dimension vector. Implementations must
// be deterministic for identical input and model version.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Model() string
}

// ResilientOpts configures the Resilient wrapper.
type ResilientOpts struct {
	Retry   fn.RetryOpts
	Breaker resilience.BreakerOpts
	// Timeout bounds a single provider call, not the whole retry loop.
	Timeout time.Duration
}

// DefaultResilientOpts returns sensible defaults.
func DefaultResilientOpts() ResilientOpts {
	return ResilientOpts{
		Retry: fn.RetryOpts{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Jitter:      true,
		},
		Breaker: resilience.DefaultBreakerOpts,
		Timeout: 15 * time.Second,
	}
}

// Resilient wraps an Embedder with per-call timeout, exponential-backoff
// retry, and a circuit breaker. The breaker trips on repeated provider
// failures so a dead provider fails fast instead of burning the retry budget
// on every query.
type Resilient struct {
	inner   Embedder
	breaker *resilience.Breaker
	opts    ResilientOpts
}

// NewResilient wraps inner with retry and circuit-breaker protection.
func NewResilient(inner Embedder, opts ResilientOpts) *Resilient {
	return &Resilient{
		inner:   inner,
		breaker: resilience.NewBreaker(opts.Breaker),
		opts:    opts,
	}
}

// Embed implements Embedder.
func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	result := fn.Retry(ctx, r.opts.Retry, func(ctx context.Context) fn.Result[[]float32] {
		return resilience.CallResult(r.breaker, ctx, func(ctx context.Context) fn.Result[[]float32] {
			if r.opts.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
				defer cancel()
			}
			return fn.FromPair(r.inner.Embed(ctx, text))
		})
	})
	vec, err := result.Unwrap()
	if err != nil {
		return nil, fmt.Errorf("embed %s: %w", r.inner.Model(), err)
	}
	return vec, nil
}

// Dimensions implements Embedder.
func (r *Resilient) Dimensions() int { return r.inner.Dimensions() }

// Model implements Embedder.
func (r *Resilient) Model() string { return r.inner.Model() }
