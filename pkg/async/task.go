// Package async provides a single-use background task primitive: caller
// logic runs on a pool of background contexts while every observable
// hook (progress, completion, cancellation) is delivered on one main
// Loop, in emission order. Cancellation is cooperative, never
// preemptive.
package async

import (
	"errors"
	"runtime/debug"
	"sync/atomic"
)

// Func is the background work of a task. It runs entirely on a pool
// worker. It may publish progress through tc and should poll
// tc.Cancelled if it wants to honour cancellation, returning
// ErrCancelled to end on the cancelled path.
type Func[P, Q, R any] func(tc *TaskContext[Q], params P) (R, error)

// Hooks bundles the caller-supplied logic of a task. Run is required;
// every other hook defaults to a no-op. All hooks except Run execute on
// the task's Loop.
type Hooks[P, Q, R any] struct {
	OnSetup     func()      // before dispatch, synchronously inside Start
	Run         Func[P, Q, R]
	OnProgress  func(Q)     // once per published event, in order
	OnComplete  func(R)     // exactly once, only on normal completion
	OnCancelled func(error) // exactly once on cancel or fault; nil error means cooperative cancel
}

// Task is a one-shot background unit of work. Start may be called once;
// afterwards exactly one of OnComplete/OnCancelled is delivered on the
// Loop, after all progress events.
//
// Start and RequestCancel are meant to be called from the Loop; the
// task does not serialize callers beyond its own state transitions.
type Task[P, Q, R any] struct {
	loop  *Loop
	pool  *Pool
	hooks Hooks[P, Q, R]

	state         atomic.Int32
	cancelRequest atomic.Bool

	params P
	result R
	fault  *BackgroundFault
}

// New builds a task in StateCreated. It panics if hooks.Run is nil.
func New[P, Q, R any](loop *Loop, pool *Pool, hooks Hooks[P, Q, R]) *Task[P, Q, R] {
	if hooks.Run == nil {
		panic("async: Hooks.Run is required")
	}
	return &Task[P, Q, R]{loop: loop, pool: pool, hooks: hooks}
}

// Start captures params, runs OnSetup, dispatches Run to the pool and
// returns without waiting for it. The second and later calls return an
// *InvalidStateError and do not run anything.
//
// A dispatch failure (pool closed or full) still resolves the task:
// the cancelled hook is delivered with the submission error as fault.
func (t *Task[P, Q, R]) Start(params P) error {
	if !t.state.CompareAndSwap(int32(StateCreated), int32(StateRunning)) {
		return &InvalidStateError{Op: "Start", State: t.State()}
	}
	t.params = params
	if t.hooks.OnSetup != nil {
		t.hooks.OnSetup()
	}
	if err := t.pool.Submit(t.execute); err != nil {
		t.finishCancelled(&BackgroundFault{Err: err})
	}
	return nil
}

// RequestCancel flags the task for cooperative cancellation. It is
// idempotent and never interrupts the background function; work that
// ignores the flag and returns normally still completes.
func (t *Task[P, Q, R]) RequestCancel() {
	t.cancelRequest.Store(true)
	t.state.CompareAndSwap(int32(StateRunning), int32(StateCancelling))
}

func (t *Task[P, Q, R]) IsCancelRequested() bool {
	return t.cancelRequest.Load()
}

func (t *Task[P, Q, R]) State() State {
	return State(t.state.Load())
}

// Fault returns the captured background fault, non-nil only after the
// cancelled hook was triggered by a failure rather than a cooperative
// cancel.
func (t *Task[P, Q, R]) Fault() error {
	if t.State() != StateCancelled || t.fault == nil {
		return nil
	}
	return t.fault
}

// Result returns the background function's return value once the task
// has completed.
func (t *Task[P, Q, R]) Result() (R, bool) {
	if t.State() != StateCompleted {
		var zero R
		return zero, false
	}
	return t.result, true
}

// execute runs on a pool worker.
func (t *Task[P, Q, R]) execute() {
	tc := &TaskContext[Q]{
		loop:       t.loop,
		onProgress: t.hooks.OnProgress,
		cancelled:  &t.cancelRequest,
		state:      t.State,
	}
	tc.active.Store(true)

	var result R
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = &BackgroundFault{Value: r, Stack: debug.Stack()}
			}
		}()
		result, err = t.hooks.Run(tc, t.params)
	}()
	tc.active.Store(false)

	switch {
	case err == nil:
		t.finishCompleted(result)
	case errors.Is(err, ErrCancelled):
		t.finishCancelled(nil)
	default:
		var fault *BackgroundFault
		if !errors.As(err, &fault) {
			fault = &BackgroundFault{Err: err}
		}
		t.finishCancelled(fault)
	}
}

// settle moves Running or Cancelling to the given terminal state.
func (t *Task[P, Q, R]) settle(next State) {
	if !t.state.CompareAndSwap(int32(StateRunning), int32(next)) {
		t.state.CompareAndSwap(int32(StateCancelling), int32(next))
	}
}

func (t *Task[P, Q, R]) finishCompleted(result R) {
	t.result = result
	t.settle(StateCompleted)
	t.loop.Post(func() {
		if t.hooks.OnComplete != nil {
			t.hooks.OnComplete(result)
		}
	})
}

func (t *Task[P, Q, R]) finishCancelled(fault *BackgroundFault) {
	t.fault = fault
	t.settle(StateCancelled)
	t.loop.Post(func() {
		if t.hooks.OnCancelled != nil {
			if fault != nil {
				t.hooks.OnCancelled(fault)
			} else {
				t.hooks.OnCancelled(nil)
			}
		}
	})
}

// TaskContext is handed to Func and is valid only while it executes.
type TaskContext[Q any] struct {
	active     atomic.Bool
	loop       *Loop
	onProgress func(Q)
	cancelled  *atomic.Bool
	state      func() State
}

// Publish delivers ev to the progress hook on the Loop and waits until
// the hook returns, so the background function and the main-context
// hooks never run at the same time and events arrive in emission order,
// all before the terminal hook. Calling Publish after Func has returned
// yields an *InvalidStateError.
func (tc *TaskContext[Q]) Publish(ev Q) error {
	if !tc.active.Load() {
		return &InvalidStateError{Op: "Publish", State: tc.state()}
	}
	if tc.onProgress == nil {
		return nil
	}
	done := make(chan struct{})
	tc.loop.Post(func() {
		tc.onProgress(ev)
		close(done)
	})
	select {
	case <-done:
	case <-tc.loop.done:
	}
	return nil
}

// Cancelled reports whether cancellation was requested. Honouring it is
// up to the background function.
func (tc *TaskContext[Q]) Cancelled() bool {
	return tc.cancelled.Load()
}
