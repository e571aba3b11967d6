package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Loop is a real-time Scheduler backed by one goroutine. Radio read loops and
// time.AfterFunc goroutines only enqueue; all callbacks execute inside Run.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
	log    *zap.Logger
}

// NewLoop returns an idle loop; call Run to start executing callbacks.
func NewLoop(log *zap.Logger) *Loop {
	if log == nil {
		log = zap.L()
	}
	return &Loop{wake: make(chan struct{}, 1), log: log.Named("sched")}
}

// Post never blocks; the queue grows as needed.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) Now() time.Time { return time.Now() }

// AfterFunc schedules fn on the loop after d. A timer stopped from inside the
// loop never runs, even if its expiry is already queued.
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.t = time.AfterFunc(d, func() {
		l.Post(func() {
			if lt.done.CompareAndSwap(false, true) {
				fn()
			}
		})
	})
	return lt
}

type loopTimer struct {
	t    *time.Timer
	done atomic.Bool
}

func (t *loopTimer) Stop() bool {
	t.t.Stop()
	return t.done.CompareAndSwap(false, true)
}

// Run executes queued callbacks until ctx is done. Callbacks still queued at
// that point are discarded.
func (l *Loop) Run(ctx context.Context) error {
	defer func() {
		l.mu.Lock()
		l.closed = true
		l.queue = nil
		l.mu.Unlock()
	}()
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()
		for _, fn := range batch {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.run(fn)
		}
		if len(batch) > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("callback panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}

// Call runs fn on the loop and waits for it, for callers outside the loop
// that need a consistent read of loop-owned state.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() { fn(); close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
