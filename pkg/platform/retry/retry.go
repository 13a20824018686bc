// Package retry provides the single retry policy applied to store writes and
// notification sends. Call sites share one policy instead of inlining their
// own attempt loops.
package retry

import (
	"context"
	"time"
)

// Policy bounds how often an operation is attempted and how long to pause
// between attempts. Backoff is fixed, not exponential: the store and the
// messaging channel both recover on the order of a connection re-dial, so
// growing pauses only delay the terminal failure.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Default is the policy used across the engine unless configured otherwise.
var Default = Policy{MaxAttempts: 3, Backoff: 200 * time.Millisecond}

// Do runs fn until it succeeds, the attempts are exhausted, or the context is
// cancelled. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Backoff):
		}
	}
	return lastErr
}
