package async

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	loop *Loop
	pool *Pool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		loop: NewLoop(64),
		pool: NewPool(4, 64),
	}
	go h.loop.Run()
	h.pool.Start()
	t.Cleanup(func() {
		h.pool.Stop()
		h.loop.Close()
	})
	return h
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not reach a terminal state in time")
	}
}

func TestStartTwice(t *testing.T) {
	h := newHarness(t)

	var runs atomic.Int32
	done := make(chan struct{})
	task := New(h.loop, h.pool, Hooks[string, int, string]{
		Run: func(tc *TaskContext[int], params string) (string, error) {
			runs.Add(1)
			return params, nil
		},
		OnComplete: func(string) { close(done) },
	})

	require.NoError(t, task.Start("once"))
	err := task.Start("twice")
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "Start", ise.Op)

	waitDone(t, done)
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, StateCompleted, task.State())

	// terminal states are stable
	err = task.Start("again")
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, StateCompleted, ise.State)
}

func TestProgressOrdering(t *testing.T) {
	h := newHarness(t)

	var events []string
	done := make(chan struct{})
	task := New(h.loop, h.pool, Hooks[string, int, string]{
		OnSetup: func() { events = append(events, "setup") },
		Run: func(tc *TaskContext[int], params string) (string, error) {
			for i := 1; i <= 3; i++ {
				assert.NoError(t, tc.Publish(i))
			}
			return params + ":done", nil
		},
		OnProgress: func(ev int) { events = append(events, fmt.Sprintf("progress:%d", ev)) },
		OnComplete: func(res string) {
			events = append(events, "complete:"+res)
			close(done)
		},
		OnCancelled: func(error) { t.Error("cancelled hook must not fire") },
	})

	require.NoError(t, task.Start("manga"))
	waitDone(t, done)

	assert.Equal(t, []string{
		"setup",
		"progress:1",
		"progress:2",
		"progress:3",
		"complete:manga:done",
	}, events)

	res, ok := task.Result()
	require.True(t, ok)
	assert.Equal(t, "manga:done", res)
}

func TestCooperativeCancel(t *testing.T) {
	h := newHarness(t)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	task := New(h.loop, h.pool, Hooks[struct{}, struct{}, int]{
		Run: func(tc *TaskContext[struct{}], _ struct{}) (int, error) {
			close(started)
			<-release
			if tc.Cancelled() {
				return 0, ErrCancelled
			}
			return 42, nil
		},
		OnComplete:  func(int) { t.Error("complete hook must not fire") },
		OnCancelled: func(fault error) {
			assert.NoError(t, fault, "cooperative cancel carries no fault")
			close(done)
		},
	})

	require.NoError(t, task.Start(struct{}{}))
	<-started
	task.RequestCancel()
	task.RequestCancel() // idempotent
	assert.True(t, task.IsCancelRequested())
	assert.Equal(t, StateCancelling, task.State())
	close(release)

	waitDone(t, done)
	assert.Equal(t, StateCancelled, task.State())
	assert.NoError(t, task.Fault())
}

func TestIgnoredCancelStillCompletes(t *testing.T) {
	h := newHarness(t)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	task := New(h.loop, h.pool, Hooks[struct{}, struct{}, int]{
		Run: func(tc *TaskContext[struct{}], _ struct{}) (int, error) {
			close(started)
			<-release
			// never looks at tc.Cancelled
			return 42, nil
		},
		OnComplete:  func(res int) { assert.Equal(t, 42, res); close(done) },
		OnCancelled: func(error) { t.Error("cancelled hook must not fire") },
	})

	require.NoError(t, task.Start(struct{}{}))
	<-started
	task.RequestCancel()
	close(release)

	waitDone(t, done)
	assert.Equal(t, StateCompleted, task.State())
}

func TestBackgroundErrorRoutesToCancelled(t *testing.T) {
	h := newHarness(t)

	boom := errors.New("collaborator failed")
	done := make(chan struct{})
	var got error
	task := New(h.loop, h.pool, Hooks[struct{}, struct{}, int]{
		Run: func(*TaskContext[struct{}], struct{}) (int, error) {
			return 0, boom
		},
		OnComplete:  func(int) { t.Error("complete hook must not fire") },
		OnCancelled: func(fault error) { got = fault; close(done) },
	})

	require.NoError(t, task.Start(struct{}{}))
	waitDone(t, done)

	var fault *BackgroundFault
	require.ErrorAs(t, got, &fault)
	assert.ErrorIs(t, got, boom)
	assert.Equal(t, StateCancelled, task.State())
	assert.ErrorIs(t, task.Fault(), boom)
}

func TestBackgroundPanicRoutesToCancelled(t *testing.T) {
	h := newHarness(t)

	done := make(chan struct{})
	var got error
	task := New(h.loop, h.pool, Hooks[struct{}, struct{}, int]{
		Run: func(*TaskContext[struct{}], struct{}) (int, error) {
			panic("kaboom")
		},
		OnComplete:  func(int) { t.Error("complete hook must not fire") },
		OnCancelled: func(fault error) { got = fault; close(done) },
	})

	require.NoError(t, task.Start(struct{}{}))
	waitDone(t, done)

	var fault *BackgroundFault
	require.ErrorAs(t, got, &fault)
	assert.Equal(t, "kaboom", fault.Value)
	assert.NotEmpty(t, fault.Stack)
}

func TestPublishOutsideRun(t *testing.T) {
	h := newHarness(t)

	var escaped *TaskContext[int]
	done := make(chan struct{})
	task := New(h.loop, h.pool, Hooks[struct{}, int, int]{
		Run: func(tc *TaskContext[int], _ struct{}) (int, error) {
			escaped = tc
			return 1, nil
		},
		OnComplete: func(int) { close(done) },
	})

	require.NoError(t, task.Start(struct{}{}))
	waitDone(t, done)

	err := escaped.Publish(7)
	var ise *InvalidStateError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, "Publish", ise.Op)
}

// TestExactlyOneTerminal runs many tasks with randomized outcomes and
// checks that each one delivers exactly one terminal hook.
func TestExactlyOneTerminal(t *testing.T) {
	h := newHarness(t)
	rng := rand.New(rand.NewSource(1))

	const n = 100
	var (
		mu        sync.Mutex
		completes = make([]int, n)
		cancels   = make([]int, n)
	)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		mode := rng.Intn(4)
		wg.Add(1)
		task := New(h.loop, h.pool, Hooks[int, int, int]{
			Run: func(tc *TaskContext[int], params int) (int, error) {
				switch mode {
				case 0:
					return params * 2, nil
				case 1:
					return 0, errors.New("fault")
				case 2:
					panic("fault")
				default:
					return 0, ErrCancelled
				}
			},
			OnComplete: func(int) {
				mu.Lock()
				completes[i]++
				mu.Unlock()
				wg.Done()
			},
			OnCancelled: func(error) {
				mu.Lock()
				cancels[i]++
				mu.Unlock()
				wg.Done()
			},
		})
		require.NoError(t, task.Start(i))
	}

	waited := make(chan struct{})
	go func() { wg.Wait(); close(waited) }()
	waitDone(t, waited)

	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		assert.Equal(t, 1, completes[i]+cancels[i], "task %d terminal hook count", i)
	}
}

func TestDispatchFailureResolvesTask(t *testing.T) {
	loop := NewLoop(16)
	go loop.Run()
	defer loop.Close()

	pool := NewPool(1, 0)
	pool.Start()
	pool.Stop() // closed before the task starts

	done := make(chan struct{})
	var got error
	task := New(loop, pool, Hooks[struct{}, struct{}, int]{
		Run:         func(*TaskContext[struct{}], struct{}) (int, error) { return 0, nil },
		OnComplete:  func(int) { t.Error("complete hook must not fire") },
		OnCancelled: func(fault error) { got = fault; close(done) },
	})

	require.NoError(t, task.Start(struct{}{}))
	waitDone(t, done)
	assert.ErrorIs(t, got, ErrPoolClosed)
	assert.Equal(t, StateCancelled, task.State())
}
