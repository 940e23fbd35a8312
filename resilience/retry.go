package resilience

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Backoff configures retries.
type Backoff struct {
	// MaxAttempts counts the first call. Zero means three.
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	// Jitter spreads each delay by up to this fraction in either direction.
	Jitter float64
	// RetryIf reports whether an error is worth another attempt.
	RetryIf func(error) bool
	// OnRetry is called before sleeping.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultBackoff returns the settings used for result publishing.
func DefaultBackoff() Backoff {
	return Backoff{
		MaxAttempts: 5,
		Initial:     50 * time.Millisecond,
		Max:         2 * time.Second,
		Factor:      2,
		Jitter:      0.1,
	}
}

// Transient retries everything except cancellation.
func Transient(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func (b *Backoff) normalize() {
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = 3
	}
	if b.Initial <= 0 {
		b.Initial = 50 * time.Millisecond
	}
	if b.Max <= 0 {
		b.Max = 2 * time.Second
	}
	if b.Factor < 1 {
		b.Factor = 2
	}
	if b.RetryIf == nil {
		b.RetryIf = Transient
	}
}

// Delay returns the pause after the given failed attempt, counted from 1.
func (b Backoff) Delay(attempt int) time.Duration {
	b.normalize()
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Initial) * math.Pow(b.Factor, float64(attempt-1))
	if b.Jitter > 0 {
		d += (rand.Float64()*2 - 1) * d * b.Jitter
	}
	if d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = float64(b.Initial)
	}
	return time.Duration(d)
}

// Do calls fn until it succeeds, returns a non-retryable error, runs out
// of attempts or ctx ends. It returns the last error seen.
func Do(ctx context.Context, b Backoff, fn func(context.Context) error) error {
	b.normalize()
	var last error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return last
			}
			return err
		}
		last = fn(ctx)
		if last == nil || !b.RetryIf(last) || attempt == b.MaxAttempts {
			return last
		}
		delay := b.Delay(attempt)
		if b.OnRetry != nil {
			b.OnRetry(attempt, last, delay)
		}
		if err := Sleep(ctx, delay); err != nil {
			return last
		}
	}
	return last
}

// Sleep pauses for d or until ctx ends, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
