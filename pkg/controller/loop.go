package controller

import (
	"context"
	"sync"
)

// Loop is a single sequential execution context. Every task posted to it
// runs on the goroutine that called Run, one at a time, in post order.
// Post never blocks, so tasks running on the loop may post further tasks.
type Loop struct {
	mu      sync.Mutex
	pending []func()
	stopped bool

	wake chan struct{}
	done chan struct{}
}

// NewLoop creates a loop with room for capacity pending tasks before the
// queue has to grow.
func NewLoop(capacity int) *Loop {
	if capacity < 1 {
		capacity = 1
	}
	return &Loop{
		pending: make([]func(), 0, capacity),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

// Post queues fn. It reports false if the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// Run executes posted tasks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
			for fn := l.next(); fn != nil; fn = l.next() {
				fn()
				if ctx.Err() != nil {
					return ctx.Err()
				}
			}
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pending) == 0 {
		return nil
	}
	fn := l.pending[0]
	l.pending[0] = nil
	l.pending = l.pending[1:]
	return fn
}

func (l *Loop) stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.stopped {
		return
	}
	l.stopped = true
	l.pending = nil
	close(l.done)
}
