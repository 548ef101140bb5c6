package async

import "sync/atomic"

// Loop is the main context: a single goroutine that owns delivery of
// every user-observable callback. Hooks for all tasks sharing a Loop run
// on it one at a time, in the order they were posted.
type Loop struct {
	ops    chan func()
	done   chan struct{}
	closed atomic.Bool
}

func NewLoop(buffer int) *Loop {
	if buffer <= 0 {
		buffer = 64
	}
	return &Loop{
		ops:  make(chan func(), buffer),
		done: make(chan struct{}),
	}
}

// Run drains the op queue until Close is called. It blocks and is meant
// to be the caller's main goroutine (or one dedicated goroutine).
func (l *Loop) Run() {
	for {
		select {
		case fn := <-l.ops:
			fn()
		case <-l.done:
			// deliver whatever was already queued before shutdown
			for {
				select {
				case fn := <-l.ops:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Post enqueues fn for execution on the loop. Posts are delivered FIFO.
// After Close, fn is dropped.
func (l *Loop) Post(fn func()) {
	if l.closed.Load() {
		return
	}
	select {
	case l.ops <- fn:
	case <-l.done:
	}
}

func (l *Loop) Close() {
	if l.closed.CompareAndSwap(false, true) {
		close(l.done)
	}
}
