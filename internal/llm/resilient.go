package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
)

// ResilientProvider isolates a failing backend: a bulkhead caps concurrent
// requests and a circuit breaker fails fast after repeated errors. Retries
// are left to the caller, which owns the retry budget.
type ResilientProvider struct {
	inner    Provider
	breaker  circuitbreaker.CircuitBreaker[*Response]
	bulkhead bulkhead.Bulkhead[*Response]
}

// WithResilience wraps a Provider with a circuit breaker and bulkhead.
func WithResilience(p Provider, cfg ResilienceConfig, logger *slog.Logger) Provider {
	if logger == nil {
		logger = slog.Default()
	}
	failures := cfg.ConsecutiveFailures
	if failures == 0 {
		failures = 5
	}
	openTimeout := cfg.OpenTimeout
	if openTimeout <= 0 {
		openTimeout = 30 * time.Second
	}
	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}

	return &ResilientProvider{
		inner: p,
		breaker: circuitbreaker.New[*Response](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     openTimeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= failures
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				logger.Warn("generator circuit breaker state change",
					"provider", p.Name(),
					"from", from.String(),
					"to", to.String())
			},
		}),
		bulkhead: bulkhead.New[*Response](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 4,
			QueueTimeout:  10 * time.Second,
		}),
	}
}

func (r *ResilientProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	resp, err := r.breaker.Execute(ctx, func(ctx context.Context) (*Response, error) {
		return r.bulkhead.Execute(ctx, func(ctx context.Context) (*Response, error) {
			return r.inner.Generate(ctx, req)
		})
	})
	if err != nil {
		var unavail *ErrProviderUnavailable
		var rl *ErrRateLimit
		var inv *ErrInvalidResponse
		var maxTok *ErrMaxTokensExceeded
		if !asAny(err, &unavail, &rl, &inv, &maxTok) && ctx.Err() == nil {
			// Open breaker or full bulkhead.
			return nil, &ErrProviderUnavailable{Err: err}
		}
	}
	return resp, err
}

func (r *ResilientProvider) Name() string    { return r.inner.Name() }
func (r *ResilientProvider) ModelID() string { return r.inner.ModelID() }
