package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Class identifies an operation class with its own request budget. The
// wiki API tolerates frequent reads but throttles render operations hard,
// so each class carries an independent minimum interval.
type Class string

// Limiter enforces one request per interval per class. It is a blocking
// single-flight throttle, not a token bucket: concurrent callers of the
// same class serialize on the class mutex, and each caller sleeps until
// the interval since the previous request of that class has elapsed.
type Limiter struct {
	mu      sync.Mutex
	classes map[Class]*classState
	now     func() time.Time
	sleep   func(context.Context, time.Duration) error
}

type classState struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

func New(intervals map[Class]time.Duration) *Limiter {
	l := &Limiter{
		classes: make(map[Class]*classState, len(intervals)),
		now:     time.Now,
		sleep:   sleepCtx,
	}
	for class, interval := range intervals {
		if interval < 0 {
			interval = 0
		}
		l.classes[class] = &classState{interval: interval}
	}
	return l
}

// Wait blocks until the caller may issue a request of the given class,
// then records the request time. Unknown classes pass through unthrottled.
// The context cancels a pending sleep.
func (l *Limiter) Wait(ctx context.Context, class Class) error {
	l.mu.Lock()
	state, ok := l.classes[class]
	l.mu.Unlock()
	if !ok {
		return ctx.Err()
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.last.IsZero() {
		elapsed := l.now().Sub(state.last)
		if remaining := state.interval - elapsed; remaining > 0 {
			if err := l.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	state.last = l.now()
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
