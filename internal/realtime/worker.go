package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job is one unit of post-commit fan-out work.
type Job struct {
	Name string
	Run  func(ctx context.Context)
}

// Worker drains a bounded FIFO of jobs on a single goroutine so that
// notification writes and dispatches never block the HTTP response.
type Worker struct {
	mu      sync.Mutex
	stopped bool
	queue   chan Job
	timeout time.Duration
	metrics *Metrics
	logger  *slog.Logger
}

func NewWorker(size int, timeout time.Duration, metrics *Metrics, logger *slog.Logger) *Worker {
	if size <= 0 {
		size = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		queue:   make(chan Job, size),
		timeout: timeout,
		metrics: metrics,
		logger:  logger,
	}
}

// Submit enqueues job without blocking. A full queue or a stopped worker
// drops it.
func (w *Worker) Submit(job Job) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		w.metrics.jobDropped()
		w.logger.Warn("fanout.job.dropped", "job", job.Name, "reason", "stopped")
		return false
	}
	select {
	case w.queue <- job:
		return true
	default:
		w.metrics.jobDropped()
		w.logger.Warn("fanout.job.dropped", "job", job.Name, "reason", "queue_full", "queued", len(w.queue))
		return false
	}
}

func (w *Worker) Pending() int {
	return len(w.queue)
}

// Run processes jobs until ctx is cancelled, then stops accepting new jobs,
// drains what is already queued and returns. Cancel ctx only after the HTTP
// server has finished its in-flight requests.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			w.stopped = true
			w.mu.Unlock()
			w.drain()
			return nil
		case job := <-w.queue:
			w.run(context.Background(), job)
		}
	}
}

func (w *Worker) drain() {
	for {
		select {
		case job := <-w.queue:
			w.run(context.Background(), job)
		default:
			return
		}
	}
}

func (w *Worker) run(parent context.Context, job Job) {
	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()
	defer func() {
		if recovered := recover(); recovered != nil {
			w.logger.Error("fanout.job.panic", "job", job.Name, "panic", recovered)
		}
	}()
	started := time.Now()
	job.Run(ctx)
	w.logger.Debug("fanout.job", "job", job.Name, "duration_ms", time.Since(started).Milliseconds())
}
