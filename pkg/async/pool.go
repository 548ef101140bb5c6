package async

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrPoolClosed = errors.New("async: pool is closed")
	ErrPoolFull   = errors.New("async: pool queue is full")
)

// Pool is the set of background execution contexts. A fixed number of
// worker goroutines consume jobs from a buffered channel; each task
// occupies one worker from dispatch until its background function
// returns.
type Pool struct {
	jobs    chan func()
	workers int
	wg      sync.WaitGroup
	mu      sync.Mutex
	closed  bool
}

func NewPool(workers, queue int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queue < 0 {
		queue = 0
	}
	return &Pool{
		jobs:    make(chan func(), queue),
		workers: workers,
	}
}

// Start launches the worker goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				job()
			}
		}()
	}
}

// Submit enqueues a job for a worker. It never blocks: if the queue is
// at capacity or the pool is closed it returns an error instead.
func (p *Pool) Submit(job func()) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.jobs <- job:
		return nil
	default:
		return fmt.Errorf("%w: capacity %d", ErrPoolFull, cap(p.jobs))
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.jobs)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
