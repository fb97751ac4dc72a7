// Package jobmanager runs long offline batches on a bounded worker pool and
// persists their status so a caller can poll it after the submitting request
// has returned. Grounded on the reference Python implementation's
// JobManager (app/services/job_manager.py): the same fresh-uuid job id, the
// same pending -> running -> completed|failed state machine with a durable
// write at every transition, and the same file-per-job store — but the
// ThreadPoolExecutor becomes a fixed pool of worker goroutines pulling from
// a buffered channel, matching the worker-pool idiom the teacher uses in its
// batch processor (internal/intelligence/common/batch.go).
package jobmanager

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/model"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// Status is the lifecycle state of a submitted job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is the persisted state of one job. Result is an arbitrary
// JSON-marshalable value produced by the job function.
type Record struct {
	JobID       string      `json:"job_id"`
	Status      Status      `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	Result      interface{} `json:"result,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// JobFunc is the body of an offline job. Its return value is stored as the
// job's Result on success.
type JobFunc func(ctx context.Context) (interface{}, error)

type task struct {
	jobID string
	fn    JobFunc
}

// Manager is the component described in 4.D: a bounded worker pool that
// executes JobFuncs asynchronously and durably records their progress.
type Manager struct {
	maxWorkers int
	jobsDir    string
	log        logging.Logger

	tasks  chan task
	wg     sync.WaitGroup
	stopCh chan struct{}

	mu      sync.Mutex // guards per-job file writes against concurrent Submit/worker races
	started bool
}

// New constructs a Manager. jobsDir is created if it does not already exist.
// Call Start before Submit.
func New(maxWorkers int, jobsDir string, log logging.Logger) (*Manager, error) {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	if err := os.MkdirAll(jobsDir, 0o755); err != nil {
		return nil, errors.Internal("failed to create job store directory").WithCause(err)
	}
	return &Manager{
		maxWorkers: maxWorkers,
		jobsDir:    jobsDir,
		log:        log,
		tasks:      make(chan task, maxWorkers*4),
		stopCh:     make(chan struct{}),
	}, nil
}

// Start spawns maxWorkers worker goroutines. Idempotent.
func (m *Manager) Start() {
	if m.started {
		return
	}
	m.started = true
	for i := 0; i < m.maxWorkers; i++ {
		m.wg.Add(1)
		go m.worker()
	}
	m.log.Info("job manager started", logging.Int("max_workers", m.maxWorkers))
}

// Stop signals the worker pool to finish in-flight jobs and stop accepting
// new task dispatches, then waits for every worker to exit or ctx to expire.
// Jobs already queued in the channel but not yet picked up are left
// pending — their persisted record remains "pending" or "running" and a
// caller may resubmit or simply observe the stale state via Status.
func (m *Manager) Stop(ctx context.Context) error {
	close(m.stopCh)
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit assigns a fresh job id, persists its initial pending record, and
// dispatches fn to the worker pool. It returns immediately with the job id.
func (m *Manager) Submit(fn JobFunc) (string, error) {
	jobID := uuid.NewString()
	now := time.Now()
	if err := m.save(jobID, Record{JobID: jobID, Status: StatusPending, SubmittedAt: now}); err != nil {
		return "", err
	}

	// A full task channel blocks the submitting goroutine, not any worker;
	// offline submissions are not latency sensitive the way online requests
	// routed through the Scheduler are.
	m.tasks <- task{jobID: jobID, fn: fn}
	return jobID, nil
}

// Status returns the current status of jobID, or errors.JobNotFound if no
// record exists.
func (m *Manager) Status(jobID string) (Status, error) {
	rec, err := m.load(jobID)
	if err != nil {
		return "", err
	}
	return rec.Status, nil
}

// Result returns the full record for jobID, or errors.JobNotFound if no
// record exists. Callers should check Status before trusting Result's
// Result/Error fields.
func (m *Manager) Result(jobID string) (Record, error) {
	return m.load(jobID)
}

func (m *Manager) worker() {
	defer m.wg.Done()
	for {
		select {
		case <-m.stopCh:
			return
		case t := <-m.tasks:
			m.run(t)
		}
	}
}

// run executes one task, writing a durable state transition before and
// after invocation. A panicking job function is recovered and recorded as a
// failure rather than crashing the worker goroutine.
func (m *Manager) run(t task) {
	now := time.Now()
	_ = m.save(t.jobID, Record{Status: StatusRunning, StartedAt: &now})

	result, err := m.invoke(t.fn)

	completedAt := time.Now()
	if err != nil {
		m.log.Error("offline job failed", logging.String("job_id", t.jobID), logging.Err(err))
		_ = m.save(t.jobID, Record{Status: StatusFailed, CompletedAt: &completedAt, Error: err.Error()})
		return
	}
	_ = m.save(t.jobID, Record{Status: StatusCompleted, CompletedAt: &completedAt, Result: result})
}

// invoke calls fn, converting a recovered panic into an error so it is
// recorded as a job failure rather than taking down the worker.
func (m *Manager) invoke(fn JobFunc) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Internal("job panicked").WithDetail(fmt.Sprintf("recovered: %v", r))
		}
	}()
	return fn(context.Background())
}

// ChunkedPredict scores rows against predict in chunks of chunkSize,
// sleeping yieldInterval between chunks so a concurrently running Scheduler
// can acquire the shared device lock inside predict. It is the closure body
// an Inference Coordinator wraps into a JobFunc for EnqueueBatch: no offline
// job may hold the device continuously for more than one chunk's worth of
// work.
func ChunkedPredict(rows []model.Row, predict func([]model.Row) ([]model.Prediction, error), chunkSize int, yieldInterval time.Duration) ([]model.Prediction, error) {
	if chunkSize < 1 {
		chunkSize = 1
	}
	out := make([]model.Prediction, 0, len(rows))
	for start := 0; start < len(rows); start += chunkSize {
		end := start + chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		preds, err := predict(rows[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, preds...)

		if end < len(rows) && yieldInterval > 0 {
			time.Sleep(yieldInterval)
		}
	}
	return out, nil
}

func (m *Manager) jobPath(jobID string) string {
	return filepath.Join(m.jobsDir, jobID+".json")
}

// save merges updates into the job's persisted record and writes it via a
// temp-file-then-rename so a concurrent reader never observes a partial
// write. JobID/SubmittedAt are preserved across merges when the incoming
// update omits them.
func (m *Manager) save(jobID string, update Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, _ := m.loadLocked(jobID)
	merged := mergeRecord(current, update)
	merged.JobID = jobID

	data, err := json.Marshal(merged)
	if err != nil {
		return errors.Internal("failed to marshal job record").WithCause(err)
	}

	path := m.jobPath(jobID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errors.Internal("failed to write job record").WithCause(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Internal("failed to finalize job record").WithCause(err)
	}
	return nil
}

// mergeRecord overlays the non-zero fields of update onto base, preserving
// everything base already has for fields update leaves unset.
func mergeRecord(base Record, update Record) Record {
	merged := base
	if update.Status != "" {
		merged.Status = update.Status
	}
	if !update.SubmittedAt.IsZero() {
		merged.SubmittedAt = update.SubmittedAt
	}
	if update.StartedAt != nil {
		merged.StartedAt = update.StartedAt
	}
	if update.CompletedAt != nil {
		merged.CompletedAt = update.CompletedAt
	}
	if update.Result != nil {
		merged.Result = update.Result
	}
	if update.Error != "" {
		merged.Error = update.Error
	}
	return merged
}

func (m *Manager) load(jobID string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(jobID)
}

// loadLocked assumes mu is held.
func (m *Manager) loadLocked(jobID string) (Record, error) {
	data, err := os.ReadFile(m.jobPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return Record{}, errors.JobNotFound(jobID)
		}
		return Record{}, errors.Internal("failed to read job record").WithCause(err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, errors.Internal("failed to parse job record").WithCause(err)
	}
	return rec, nil
}
