package rest

import (
	"context"
	"sync"
	"time"
)

// Limiter enforces a minimum interval between outbound requests. Each client
// owns its own Limiter, so separate clients never share timing state.
type Limiter struct {
	mu       sync.Mutex
	last     time.Time
	interval time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter returns a Limiter whose interval is one second divided by
// maxConcurrentRequests. Values below one disable spacing.
func NewLimiter(maxConcurrentRequests int) *Limiter {
	var interval time.Duration
	if maxConcurrentRequests > 0 {
		interval = time.Second / time.Duration(maxConcurrentRequests)
	}
	return NewLimiterInterval(interval)
}

// NewLimiterInterval returns a Limiter with an explicit minimum interval.
func NewLimiterInterval(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// Interval returns the minimum spacing between requests.
func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Last returns the time the most recent request was admitted.
func (l *Limiter) Last() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last
}

// Wait blocks until at least Interval has elapsed since the previous admitted
// request, then records the current time as the latest request.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.last.IsZero() && l.interval > 0 {
		if remaining := l.interval - l.now().Sub(l.last); remaining > 0 {
			if err := l.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}
	l.last = l.now()
	return nil
}

// sleepContext sleeps for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
