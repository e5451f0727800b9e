package rest

import (
	"context"
	"testing"
	"time"
)

func TestNewLimiterInterval(t *testing.T) {
	tests := []struct {
		max  int
		want time.Duration
	}{
		{1, time.Second},
		{5, 200 * time.Millisecond},
		{10, 100 * time.Millisecond},
		{0, 0},
	}
	for _, tt := range tests {
		if got := NewLimiter(tt.max).Interval(); got != tt.want {
			t.Errorf("NewLimiter(%d).Interval() = %v, want %v", tt.max, got, tt.want)
		}
	}
}

func TestLimiterSleepsRemainder(t *testing.T) {
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	var slept []time.Duration

	l := NewLimiter(5)
	l.now = func() time.Time { return clock }
	l.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		clock = clock.Add(d)
		return nil
	}

	ctx := context.Background()
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	if len(slept) != 0 {
		t.Fatalf("first request should not sleep, slept %v", slept)
	}

	clock = clock.Add(50 * time.Millisecond)
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("second Wait: %v", err)
	}
	if len(slept) != 1 || slept[0] != 150*time.Millisecond {
		t.Fatalf("slept = %v, want [150ms]", slept)
	}

	clock = clock.Add(time.Second)
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("third Wait: %v", err)
	}
	if len(slept) != 1 {
		t.Fatalf("request after a long gap should not sleep, slept %v", slept)
	}
	if !l.Last().Equal(clock) {
		t.Fatalf("Last = %v, want %v", l.Last(), clock)
	}
}

func TestLimitersAreIndependent(t *testing.T) {
	a := NewLimiter(1)
	b := NewLimiter(1)
	ctx := context.Background()

	if err := a.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	start := time.Now()
	if err := b.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("a second limiter must not wait on the first one's clock")
	}
}

func TestLimiterWaitCancelled(t *testing.T) {
	l := NewLimiterInterval(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Fatal("expected error from cancelled wait")
	}
}
