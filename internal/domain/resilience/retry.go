// Package resilience wraps calls to rate-limited dependencies with
// jittered exponential backoff. It is pure control flow and knows nothing
// about the payloads it carries.
package resilience

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Defaults for Policy.
const (
	DefaultMaxRetries     = 5
	DefaultInitialBackoff = time.Second
	DefaultMaxBackoff     = 32 * time.Second
)

// RetryEvent describes one scheduled retry.
type RetryEvent struct {
	Name    string
	Attempt int // The attempt that just failed, starting at 1
	Wait    time.Duration
	Err     error
}

// Policy configures Execute. Build one with DefaultPolicy and override fields.
type Policy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration

	// Classifier reports whether an error is transient. Defaults to IsThrottling.
	Classifier func(error) bool
	// Sleep waits for d or until ctx is done.
	Sleep func(ctx context.Context, d time.Duration) error
	// Jitter returns the random addition to each wait, uniform in [0, 1s) by default.
	Jitter func() time.Duration
	// OnRetry is called before each wait.
	OnRetry func(RetryEvent)
}

// DefaultPolicy returns a policy with 5 retries, 1s initial and 32s maximum backoff.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:     DefaultMaxRetries,
		InitialBackoff: DefaultInitialBackoff,
		MaxBackoff:     DefaultMaxBackoff,
	}
}

// WithObserver returns a copy of p that also calls fn on every retry.
func (p Policy) WithObserver(fn func(RetryEvent)) Policy {
	prev := p.OnRetry
	p.OnRetry = func(ev RetryEvent) {
		if prev != nil {
			prev(ev)
		}
		fn(ev)
	}
	return p
}

// Execute runs op immediately and retries it while it fails with transient errors.
// Fatal errors are returned after one attempt. After MaxRetries retries the last
// error is returned tagged with ErrExhaustedRetries.
func Execute[T any](ctx context.Context, p Policy, name string, op func(context.Context) (T, error)) (T, error) {
	var zero T

	classify := p.Classifier
	if classify == nil {
		classify = IsThrottling
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}
	jitter := p.Jitter
	if jitter == nil {
		jitter = uniformJitter
	}
	maxRetries := max(p.MaxRetries, 0)

	backoff := p.InitialBackoff
	for attempt := 1; ; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !classify(err) {
			return zero, &DependencyError{Name: name, Attempts: attempt, Kind: ErrFatalDependency, Err: err}
		}
		if attempt > maxRetries {
			return zero, &DependencyError{Name: name, Attempts: attempt, Transient: true, Kind: ErrExhaustedRetries, Err: err}
		}

		wait := backoff + jitter()
		if p.MaxBackoff > 0 && wait > p.MaxBackoff {
			wait = p.MaxBackoff
		}
		if p.OnRetry != nil {
			p.OnRetry(RetryEvent{Name: name, Attempt: attempt, Wait: wait, Err: err})
		}
		if err := sleep(ctx, wait); err != nil {
			return zero, fmt.Errorf("%s: retry cancelled: %w", name, err)
		}

		backoff *= 2
		if p.MaxBackoff > 0 && backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}
}

// Do is Execute for operations without a result.
func Do(ctx context.Context, p Policy, name string, op func(context.Context) error) error {
	_, err := Execute(ctx, p, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func uniformJitter() time.Duration {
	return time.Duration(rand.Float64() * float64(time.Second))
}
