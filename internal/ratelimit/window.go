package ratelimit

import (
	"context"
	"sync"
	"time"
)

// WindowLimiter is an in-process fixed-window limiter. Counters are cleared by
// a ticker owned by the limiter, so a window's allowance is admitted at most
// once per tick regardless of how requests are spread inside the window.
type WindowLimiter struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	counts  map[string]int
	resetAt time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	started   chan struct{}
	stop      chan struct{}
	done      chan struct{}
}

// NewWindowLimiter creates a limiter admitting limit events per window per key.
// Call Start to begin the reset ticker.
func NewWindowLimiter(limit int, window time.Duration) *WindowLimiter {
	if limit < 1 {
		limit = 1
	}
	l := &WindowLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		counts:  make(map[string]int),
		started: make(chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	l.resetAt = l.now().Add(window)
	return l
}

// Start launches the reset ticker. It stops when ctx is cancelled or Stop is called.
func (l *WindowLimiter) Start(ctx context.Context) {
	l.startOnce.Do(func() {
		close(l.started)
		go l.run(ctx)
	})
}

func (l *WindowLimiter) run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.window)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		case <-ticker.C:
			l.Reset()
		}
	}
}

// Stop halts the reset ticker and waits for it to exit. Safe to call more than once.
func (l *WindowLimiter) Stop() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
	select {
	case <-l.started:
		<-l.done
	default:
	}
}

// Reset clears every counter and opens a new window.
func (l *WindowLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	clear(l.counts)
	l.resetAt = l.now().Add(l.window)
}

// Allow admits the event if key has budget left in the current window.
func (l *WindowLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.counts[key] >= l.limit {
		retry := l.resetAt.Sub(l.now())
		if retry < 0 {
			retry = 0
		}
		return Decision{Allowed: false, RetryAfter: retry}, nil
	}

	l.counts[key]++
	return Decision{Allowed: true, Remaining: l.limit - l.counts[key]}, nil
}
