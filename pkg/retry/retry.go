// Package retry wraps retry-go with the bounded policy used for outbound calls.
package retry

import (
	"context"
	"time"

	retrygo "github.com/avast/retry-go/v4"
	"go.uber.org/zap"
)

// Policy describes how many times and how long to wait between attempts.
type Policy struct {
	Attempts uint
	Delay    time.Duration
	// Backoff switches from a fixed delay to exponential backoff.
	Backoff bool
	// RetryIf decides whether an error is transient. Nil retries every error.
	RetryIf func(error) bool
	Logger  *zap.Logger
	Name    string
}

// Do runs fn until it succeeds, the policy is exhausted, or ctx is done.
// The last error is returned unwrapped so callers can inspect it with errors.As.
func Do(ctx context.Context, p Policy, fn func(context.Context) error) error {
	if p.Attempts == 0 {
		p.Attempts = 1
	}
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	delayType := retrygo.FixedDelay
	if p.Backoff {
		delayType = retrygo.BackOffDelay
	}

	opts := []retrygo.Option{
		retrygo.Context(ctx),
		retrygo.Attempts(p.Attempts),
		retrygo.Delay(p.Delay),
		retrygo.DelayType(delayType),
		retrygo.LastErrorOnly(true),
		retrygo.OnRetry(func(n uint, err error) {
			p.Logger.Warn("retrying call", zap.String("call", p.Name), zap.Uint("attempt", n+1), zap.Error(err))
		}),
	}
	if p.RetryIf != nil {
		opts = append(opts, retrygo.RetryIf(p.RetryIf))
	}

	return retrygo.Do(func() error { return fn(ctx) }, opts...)
}
