// Package worker applies engagement events to catalog counters in the background.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/pkg/logger"
	"github.com/okian/swipescore/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// EngagementRecorder persists the counter update for one swipe.
type EngagementRecorder interface {
	ApplyEngagement(ctx context.Context, itemID string, d model.Direction) error
}

// Queue defines how workers receive events.
type Queue interface {
	Dequeue() <-chan model.EngagementEvent
}

// Worker processes engagement events.
type Worker interface {
	// Run consumes events until the queue is drained and closed or ctx is done.
	Run(ctx context.Context)
}

// InMemoryWorker drains a Queue into an EngagementRecorder.
type InMemoryWorker struct {
	queue    Queue
	recorder EngagementRecorder
	name     string
	logger   logger.Logger

	processed atomic.Int64
	failed    atomic.Int64
	done      chan struct{}
}

// NewInMemoryWorker creates a worker reading from queue.
func NewInMemoryWorker(queue Queue, recorder EngagementRecorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		recorder: recorder,
		name:     "worker",
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop. Events already queued when the queue is closed
// are still applied.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			if err := w.process(ctx, e); err != nil {
				w.logger.Warn(ctx, "engagement not applied",
					logger.String("item_id", e.ItemID),
					logger.String("direction", e.Direction.String()),
					logger.Error(err),
				)
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

// Processed returns the number of events applied successfully.
func (w *InMemoryWorker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of events that could not be applied.
func (w *InMemoryWorker) Failed() int64 { return w.failed.Load() }

func (w *InMemoryWorker) process(ctx context.Context, e model.EngagementEvent) error {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if err := w.recorder.ApplyEngagement(ctx, e.ItemID, e.Direction); err != nil {
		w.failed.Add(1)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "apply_engagement")
		return fmt.Errorf("apply engagement for %s: %w", e.ItemID, err)
	}

	w.processed.Add(1)
	metrics.RecordEngagementApplied(e.Direction.String())
	return nil
}

// Pool runs a fixed number of workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
	running atomic.Int64
	started atomic.Bool
}

// NewPool creates a pool of workerCount workers. A count below 1 uses NumCPU.
func NewPool(workerCount int, queue Queue, recorder EngagementRecorder) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(queue, recorder, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerActiveCount(0)

	return p
}

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	for _, w := range p.workers {
		p.running.Add(1)
		metrics.UpdateWorkerActiveCount(int(p.running.Load()))
		go func(w *InMemoryWorker) {
			defer func() {
				metrics.UpdateWorkerActiveCount(int(p.running.Add(-1)))
			}()
			w.Run(ctx)
		}(w)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns the events applied across all workers.
func (p *Pool) Processed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Processed()
	}
	return n
}

// Failed returns the events that failed across all workers.
func (p *Pool) Failed() int64 {
	var n int64
	for _, w := range p.workers {
		n += w.Failed()
	}
	return n
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	if !p.started.Load() {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
		}
	}
	return nil
}
