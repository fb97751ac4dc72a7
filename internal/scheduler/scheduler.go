// Package scheduler implements the request-coalescing batch scheduler
// described in the design's component C — the central algorithm of this
// server. It amortizes per-call device overhead by coalescing concurrent
// independent single-row requests into batches bounded by max_batch_size,
// with a head-of-queue wait bounded by max_latency.
//
// Grounded algorithmically on the reference Python implementation
// (app/services/batch_scheduler.py): the same head-of-batch deadline, the
// same "if we are already behind, drain non-blocking to maximize
// throughput" fairness rule. The asyncio.Future per item becomes a
// buffered, one-shot Go channel; the asyncio worker task becomes a single
// perpetual goroutine; asyncio.Queue becomes a buffered Go channel sized to
// max_queue_size, with a non-blocking send standing in for put_nowait's
// QueueFull behavior.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/model"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// PredictFunc scores a batch of rows, returning one Prediction per Row in
// positional correspondence. It may itself be serialized by a device lock
// inside the underlying Model.
type PredictFunc func(rows []model.Row) ([]model.Prediction, error)

// queueItem is one pending request: the row, its one-shot result channel,
// and when it was enqueued.
type queueItem struct {
	row        model.Row
	resultCh   chan result
	enqueuedAt time.Time
}

type result struct {
	prediction model.Prediction
	err        error
}

// Config holds Scheduler tunables.
type Config struct {
	MaxBatchSize int
	MaxLatency   time.Duration
	MaxQueueSize int
}

// BatchObserver is notified after each batch flush, for metrics wiring.
// queueDepthAfter is the number of items still waiting once the batch was
// removed from the queue channel; batchSize is the number of rows sent to
// Predict in this flush.
type BatchObserver func(queueDepthAfter, batchSize int)

// Scheduler is the component described in 4.C. It owns exactly one
// perpetual worker goroutine (Start spawns it); Submit is called from
// arbitrary request-handling goroutines and blocks only the caller, never
// the worker.
type Scheduler struct {
	version string // label used in logging/metrics
	predict PredictFunc
	cfg     Config
	log     logging.Logger
	observe BatchObserver

	queue   chan *queueItem
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped atomic.Bool
}

// New constructs a Scheduler. It does not start the worker goroutine —
// callers must call Start.
func New(version string, predict PredictFunc, cfg Config, log logging.Logger) *Scheduler {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Scheduler{
		version: version,
		predict: predict,
		cfg:     cfg,
		log:     log,
		queue:   make(chan *queueItem, cfg.MaxQueueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// OnBatchFlush registers fn to be called after every batch flush. It must be
// set before Start to avoid racing with the worker goroutine.
func (s *Scheduler) OnBatchFlush(fn BatchObserver) {
	s.observe = fn
}

// Start spawns the worker goroutine. Idempotent: a second call is a no-op.
func (s *Scheduler) Start() {
	if s.started {
		return
	}
	s.started = true
	go s.run()
	s.log.Info("scheduler started",
		logging.String("version", s.version),
		logging.Int("max_batch_size", s.cfg.MaxBatchSize),
	)
}

// Stop signals the worker to shut down and waits for it to exit or ctx to
// expire. Any items still queued when the worker observes the stop signal
// are rejected with errors.SchedulerStopped.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.stopped.Store(true)
	close(s.stopCh)
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit enqueues row and blocks the calling goroutine — not the worker —
// until its batch resolves, then returns the prediction or the batch's
// error. It fails synchronously with errors.QueueFull when the queue is at
// capacity.
func (s *Scheduler) Submit(ctx context.Context, row model.Row) (model.Prediction, error) {
	if s.stopped.Load() {
		return model.Prediction{}, errors.SchedulerStopped()
	}

	item := &queueItem{
		row:        row,
		resultCh:   make(chan result, 1),
		enqueuedAt: time.Now(),
	}

	select {
	case s.queue <- item:
	default:
		return model.Prediction{}, errors.QueueFull()
	}

	select {
	case res := <-item.resultCh:
		return res.prediction, res.err
	case <-ctx.Done():
		return model.Prediction{}, ctx.Err()
	}
}

// run is the single perpetual worker goroutine's loop.
func (s *Scheduler) run() {
	defer close(s.doneCh)

	for {
		select {
		case <-s.stopCh:
			s.drainRemaining()
			return
		case first := <-s.queue:
			// select picks at random when both cases are ready; once Stop has
			// been called no new batch is started.
			if s.stopped.Load() {
				first.resultCh <- result{err: errors.SchedulerStopped()}
				continue
			}
			batch := s.assembleBatch(first)
			s.flush(batch)
		}
	}
}

// assembleBatch implements the worker algorithm from 4.C: block for the
// first item (already received by run), then repeatedly either wait up to
// the remaining deadline for the next item, or — once the deadline has
// passed — drain whatever is immediately available without blocking, to
// maximize throughput under load.
func (s *Scheduler) assembleBatch(first *queueItem) []*queueItem {
	batch := make([]*queueItem, 0, s.cfg.MaxBatchSize)
	batch = append(batch, first)

	deadline := first.enqueuedAt.Add(s.cfg.MaxLatency)

	for len(batch) < s.cfg.MaxBatchSize {
		now := time.Now()
		remaining := deadline.Sub(now)

		if remaining > 0 {
			timer := time.NewTimer(remaining)
			select {
			case item := <-s.queue:
				timer.Stop()
				batch = append(batch, item)
			case <-timer.C:
				return batch
			case <-s.stopCh:
				timer.Stop()
				return batch
			}
			continue
		}

		// Already behind the deadline: take whatever is available without
		// blocking, to keep up with arrival rate rather than stall further.
		select {
		case item := <-s.queue:
			batch = append(batch, item)
		default:
			return batch
		}
	}

	return batch
}

// flush invokes predict on the assembled batch and resolves or rejects
// every item's promise, then reports the flush to the configured observer.
func (s *Scheduler) flush(batch []*queueItem) {
	rows := make([]model.Row, len(batch))
	for i, item := range batch {
		rows[i] = item.row
	}

	predictions, err := s.predict(rows)

	if err != nil {
		for _, item := range batch {
			item.resultCh <- result{err: err}
		}
	} else {
		for i, item := range batch {
			item.resultCh <- result{prediction: predictions[i]}
		}
	}

	if s.observe != nil {
		s.observe(len(s.queue), len(batch))
	}
}

// drainRemaining rejects every item still sitting in the queue channel with
// errors.SchedulerStopped. It does not block: it only drains what is
// immediately available, matching the channel's buffered semantics.
func (s *Scheduler) drainRemaining() {
	for {
		select {
		case item := <-s.queue:
			item.resultCh <- result{err: errors.SchedulerStopped()}
		default:
			return
		}
	}
}
