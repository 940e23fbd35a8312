package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fast() Backoff {
	return Backoff{MaxAttempts: 4, Initial: time.Millisecond, Max: 5 * time.Millisecond, Factor: 2}
}

func TestDo_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	var retried []int
	b := fast()
	b.OnRetry = func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) }

	err := Do(context.Background(), b, func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("flaky")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do() error: %v", err)
	}
	if calls != 3 || len(retried) != 2 {
		t.Fatalf("calls = %d, retries = %v", calls, retried)
	}
}

func TestDo_GivesUp(t *testing.T) {
	boom := errors.New("down")
	calls := 0
	err := Do(context.Background(), fast(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 4 {
		t.Fatalf("got %v after %d calls", err, calls)
	}
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("bad request")
	b := fast()
	b.RetryIf = func(err error) bool { return !errors.Is(err, permanent) }
	calls := 0
	if err := Do(context.Background(), b, func(context.Context) error {
		calls++
		return permanent
	}); !errors.Is(err, permanent) || calls != 1 {
		t.Fatalf("got %v after %d calls", err, calls)
	}
}

func TestDo_RespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Do(ctx, fast(), func(context.Context) error {
		calls++
		return nil
	})
	if !errors.Is(err, context.Canceled) || calls != 0 {
		t.Fatalf("got %v after %d calls", err, calls)
	}
}

func TestDelay(t *testing.T) {
	b := Backoff{Initial: 10 * time.Millisecond, Max: 50 * time.Millisecond, Factor: 2}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for i, w := range want {
		if got := b.Delay(i + 1); got != w {
			t.Fatalf("Delay(%d) = %v, want %v", i+1, got, w)
		}
	}
	b.Jitter = 0.5
	for i := 0; i < 20; i++ {
		if d := b.Delay(1); d < 5*time.Millisecond || d > 15*time.Millisecond {
			t.Fatalf("jittered delay %v out of range", d)
		}
	}
}

func TestSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("Sleep() error: %v", err)
	}
}
