package batch

import (
	"context"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"
)

// Processor runs a whole batch to completion. Implemented by the server's
// batch registry.
type Processor interface {
	Process(ctx context.Context, batchID uuid.UUID) error
}

// Job is one queued batch run.
type Job struct {
	BatchID uuid.UUID
}

// Queue serializes batch runs onto a small worker pool. The default of one
// worker keeps recognition memory-bounded: batch i+1 does not start until
// batch i drains.
type Queue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration

	ch   chan Job
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	stop sync.Once

	mu     sync.RWMutex
	closed bool
}

type QueueOption func(*Queue)

func WithWorkers(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(q *Queue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) QueueOption {
	return func(q *Queue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

func NewQueue(proc Processor, logger *slog.Logger, opts ...QueueOption) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		proc:    proc,
		logger:  logger,
		workers: 1,
		timeout: 10 * time.Minute,
		ch:      make(chan Job, 64),
		done:    make(chan struct{}),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *Queue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("batch worker started", "worker_id", workerID)

				for job := range q.ch {
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err := q.proc.Process(ctx, job.BatchID)
					cancel()

					if err != nil {
						q.logger.Error("batch run failed", "worker_id", workerID, "batch_id", job.BatchID, "error", err)
					} else {
						q.logger.Info("batch run finished", "worker_id", workerID, "batch_id", job.BatchID)
					}
				}

				q.logger.Info("batch worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue submits a batch run. A full queue applies backpressure; the read
// lock is held through the blocking send so the channel cannot be closed
// underneath it, and Shutdown breaks the wait via the done channel.
func (q *Queue) Enqueue(_ context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.logger.Warn("cannot enqueue: queue is shutting down", "batch_id", job.BatchID)
		return nil
	}
	select {
	case q.ch <- job:
		q.logger.Info("batch queued", "batch_id", job.BatchID)
		return nil
	default:
	}

	q.logger.Warn("queue full, applying backpressure", "batch_id", job.BatchID)
	select {
	case q.ch <- job:
		q.logger.Info("batch queued", "batch_id", job.BatchID)
	case <-q.done:
		q.logger.Warn("enqueue abandoned by shutdown", "batch_id", job.BatchID)
	}
	return nil
}

func (q *Queue) Shutdown(ctx context.Context) {
	// unblock any sender stuck in backpressure before taking the write lock
	q.stop.Do(func() { close(q.done) })

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
