package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

var (
	ErrQueueFull    = errors.New("mutation queue is full")
	ErrQueueStopped = errors.New("mutation queue is stopped")
)

// Task is one unit of work run by the queue worker.
type Task func(ctx context.Context) error

// Request states. A request leaves requestWaiting exactly once, either to
// the worker or to its canceled submitter.
const (
	requestWaiting int32 = iota
	requestRunning
	requestAbandoned
)

type request struct {
	ctx      context.Context
	task     Task
	resultCh chan error
	state    atomic.Int32
}

// Queue runs submitted tasks one at a time, in arrival order, on a single
// worker goroutine. The backlog is bounded; Submit never blocks on a full
// queue.
type Queue struct {
	taskCh     chan *request
	shutdownCh chan struct{}
	wg         sync.WaitGroup
	logger     *slog.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
}

// NewQueue creates a queue holding at most size waiting tasks.
func NewQueue(size int, logger *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		taskCh:     make(chan *request, size),
		shutdownCh: make(chan struct{}),
		logger:     logger.With("module", "service", "layer", "queue"),
	}
}

// Start launches the worker. Calling it again has no effect.
func (q *Queue) Start() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.stopped {
		return
	}
	q.started = true
	q.wg.Add(1)
	go q.worker()
}

// Stop ends the worker after the task in progress. Tasks still waiting fail
// with ErrQueueStopped.
func (q *Queue) Stop() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.shutdownCh)
	q.mu.Unlock()

	q.wg.Wait()
	q.drain()
}

// Submit enqueues task and waits for its result. If ctx ends while the task
// is still waiting it is skipped and Submit returns ctx.Err(). Once the
// worker has picked the task up, Submit returns the task's own result even
// if ctx ends meanwhile.
func (q *Queue) Submit(ctx context.Context, task Task) error {
	req := &request{ctx: ctx, task: task, resultCh: make(chan error, 1)}

	q.mu.RLock()
	if q.stopped {
		q.mu.RUnlock()
		return ErrQueueStopped
	}
	select {
	case q.taskCh <- req:
	default:
		q.mu.RUnlock()
		q.logger.Warn("mutation rejected, queue is full",
			"event", "queue_full",
			"capacity", cap(q.taskCh),
		)
		return ErrQueueFull
	}
	q.mu.RUnlock()

	select {
	case err := <-req.resultCh:
		return err
	case <-ctx.Done():
		if req.state.CompareAndSwap(requestWaiting, requestAbandoned) {
			return ctx.Err()
		}
		return <-req.resultCh
	}
}

// Pending returns the number of tasks waiting for the worker.
func (q *Queue) Pending() int {
	return len(q.taskCh)
}

// Capacity returns the maximum backlog.
func (q *Queue) Capacity() int {
	return cap(q.taskCh)
}

func (q *Queue) worker() {
	defer q.wg.Done()

	for {
		select {
		case <-q.shutdownCh:
			return
		case req := <-q.taskCh:
			q.run(req)
		}
	}
}

func (q *Queue) run(req *request) {
	if !req.state.CompareAndSwap(requestWaiting, requestRunning) {
		return
	}
	if err := req.ctx.Err(); err != nil {
		req.resultCh <- err
		return
	}
	req.resultCh <- req.task(req.ctx)
}

func (q *Queue) drain() {
	for {
		select {
		case req := <-q.taskCh:
			req.resultCh <- ErrQueueStopped
		default:
			return
		}
	}
}
