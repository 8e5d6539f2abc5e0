package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ResilientFetcher wraps a Fetcher with retry, circuit breaking,
// concurrency limiting and rate limiting.
type ResilientFetcher struct {
	fetcher        Fetcher
	circuitBreaker circuitbreaker.CircuitBreaker[[]byte]
	retrier        retry.Retry[[]byte]
	bulkhead       bulkhead.Bulkhead[[]byte]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

// ResilientConfig holds configuration for the resilient fetcher.
type ResilientConfig struct {
	EnableCircuitBreaker bool
	EnableRetry          bool
	EnableBulkhead       bool
	EnableRateLimit      bool

	// MaxAttempts per fetch (default: 3)
	MaxAttempts int

	// MaxConcurrent fetches (default: 4)
	MaxConcurrent int

	// RatePerSecond towards the catalog host (default: 5)
	RatePerSecond int

	Logger *slog.Logger
}

// DefaultResilientConfig returns defaults suited to a static CDN.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxAttempts:          3,
		MaxConcurrent:        4,
		RatePerSecond:        5,
	}
}

// NewResilientFetcher wraps fetcher according to cfg.
func NewResilientFetcher(fetcher Fetcher, cfg ResilientConfig) *ResilientFetcher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rf := &ResilientFetcher{fetcher: fetcher, logger: logger}

	if cfg.EnableCircuitBreaker {
		rf.circuitBreaker = circuitbreaker.New[[]byte](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				rf.logger.Warn("catalog circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		attempts := cfg.MaxAttempts
		if attempts <= 0 {
			attempts = 3
		}
		rf.retrier = retry.New[[]byte](retry.Config{
			MaxAttempts:   attempts,
			InitialDelay:  500 * time.Millisecond,
			MaxDelay:      10 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 4
		}
		rf.bulkhead = bulkhead.New[[]byte](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 4,
			QueueTimeout:  30 * time.Second,
		})
	}

	if cfg.EnableRateLimit {
		rate := cfg.RatePerSecond
		if rate <= 0 {
			rate = 5
		}
		rf.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     rate,
			Burst:    rate * 2,
			Interval: time.Second,
		})
	}

	return rf
}

// Fetch retrieves url through the configured resilience layers.
func (f *ResilientFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if f.rateLimit != nil && !f.rateLimit.Allow(ctx, "catalog") {
		return nil, fmt.Errorf("%w: rate limit exceeded", ErrUnavailable)
	}

	operation := func(ctx context.Context) ([]byte, error) {
		return f.fetcher.Fetch(ctx, url)
	}

	if f.bulkhead != nil {
		operation = func(ctx context.Context) ([]byte, error) {
			return f.bulkhead.Execute(ctx, func(ctx context.Context) ([]byte, error) {
				return f.fetcher.Fetch(ctx, url)
			})
		}
	}

	if f.circuitBreaker != nil && f.retrier != nil {
		return f.circuitBreaker.Execute(ctx, func(ctx context.Context) ([]byte, error) {
			return f.retrier.Do(ctx, operation)
		})
	}

	if f.circuitBreaker != nil {
		return f.circuitBreaker.Execute(ctx, operation)
	}

	if f.retrier != nil {
		return f.retrier.Do(ctx, operation)
	}

	return operation(ctx)
}

// Close releases the rate limiter.
func (f *ResilientFetcher) Close() error {
	if f.rateLimit != nil {
		return f.rateLimit.Close()
	}
	return nil
}
