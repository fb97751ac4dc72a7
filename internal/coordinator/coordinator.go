// Package coordinator implements the Inference Coordinator described in the
// design's component E: the single entry point both the HTTP transport and
// the admin CLI call into. It chooses between the coalescing online path and
// the chunked offline path, updates drift statistics and metrics on every
// call, and translates internal failures into the error kinds the transport
// layer maps to HTTP status codes.
//
// Grounded on the reference Python implementation's InferenceService
// (app/services/inference_service.py): the same version-resolution rule, the
// same per-row drift update loop with a Warn log per signal, and the same
// enqueue-delegates-to-job-manager offline path.
package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/turtacn/KeyIP-Intelligence/internal/breaker"
	"github.com/turtacn/KeyIP-Intelligence/internal/drift"
	"github.com/turtacn/KeyIP-Intelligence/internal/jobmanager"
	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/metrics"
	"github.com/turtacn/KeyIP-Intelligence/internal/model"
	"github.com/turtacn/KeyIP-Intelligence/internal/registry"
	"github.com/turtacn/KeyIP-Intelligence/internal/scheduler"
	"github.com/turtacn/KeyIP-Intelligence/pkg/errors"
)

// PredictOutput is the result of one online or offline scoring call.
type PredictOutput struct {
	Predictions []model.Prediction `json:"predictions"`
	Version     string             `json:"version"`
	LatencyMS   float64            `json:"latency_ms"`
}

// HealthStatus reports whether the coordinator can currently serve the
// default model version.
type HealthStatus struct {
	Status       string `json:"status"` // "ready" or "degraded"
	DefaultModel string `json:"default_model"`
}

// NewDefaultPredictFunc builds the scheduler.PredictFunc for the Scheduler
// that serves the registry's default version. It resolves DefaultVersion on
// every flush rather than capturing it once, so a Promote takes effect on
// the very next batch without requiring the Scheduler to be rebuilt; the
// call into the resolved model is wrapped by br so repeated scoring
// failures trip the breaker, matching the control flow in which the
// scheduler's worker "invokes a prediction callback wrapped by the Breaker
// that resolves via the Registry."
func NewDefaultPredictFunc(reg *registry.Registry, br *breaker.Breaker) scheduler.PredictFunc {
	return func(rows []model.Row) ([]model.Prediction, error) {
		var preds []model.Prediction
		err := br.Execute(func() error {
			version := reg.DefaultVersion()
			m, loadErr := reg.Load(version)
			if loadErr != nil {
				return loadErr
			}
			var predictErr error
			preds, predictErr = m.Predict(rows)
			return predictErr
		})
		return preds, err
	}
}

// Coordinator is the component described in 4.E.
type Coordinator struct {
	registry   *registry.Registry
	scheduler  *scheduler.Scheduler // serves registry.DefaultVersion() only; may be nil if coalescing is disabled
	jobManager *jobmanager.Manager
	drift      *drift.Tracker
	metrics    *metrics.ServerMetrics
	log        logging.Logger

	chunkSize     int
	yieldInterval time.Duration
}

// New constructs a Coordinator wiring together the Registry (A), the
// default-version Scheduler (C, may be nil), the Job Manager (D), the Drift
// Tracker (G), and the Metrics surface (K). chunkSize and yieldInterval
// configure the chunked scorer used by EnqueueBatch.
func New(
	reg *registry.Registry,
	sched *scheduler.Scheduler,
	jm *jobmanager.Manager,
	dt *drift.Tracker,
	m *metrics.ServerMetrics,
	log logging.Logger,
	chunkSize int,
	yieldInterval time.Duration,
) *Coordinator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if m == nil {
		m = metrics.Noop()
	}
	return &Coordinator{
		registry:      reg,
		scheduler:     sched,
		jobManager:    jm,
		drift:         dt,
		metrics:       m,
		log:           log,
		chunkSize:     chunkSize,
		yieldInterval: yieldInterval,
	}
}

// Predict scores rows online. version selects a specific model; an empty
// string resolves to the registry's current default, snapshotted once for
// the whole call so every row reports the same version even under a
// concurrent Promote.
func (c *Coordinator) Predict(ctx context.Context, rows []model.Row, version string) (*PredictOutput, error) {
	effectiveVersion := version
	if effectiveVersion == "" {
		effectiveVersion = c.registry.DefaultVersion()
	}

	start := time.Now()
	preds, err := c.score(ctx, rows, effectiveVersion)
	latency := time.Since(start)

	if err != nil {
		mapped := c.mapError(err)
		c.log.Error("prediction failed",
			logging.String("version", effectiveVersion),
			logging.Err(mapped),
		)
		c.metrics.RecordRequest("predict", effectiveVersion, "error", latency)
		return nil, mapped
	}

	c.observeDrift(rows)
	c.metrics.RecordRequest("predict", effectiveVersion, "success", latency)

	return &PredictOutput{
		Predictions: preds,
		Version:     effectiveVersion,
		LatencyMS:   float64(latency.Microseconds()) / 1000.0,
	}, nil
}

// score routes rows through the coalescing Scheduler when version is the
// current default (letting the Scheduler itself reject with
// SchedulerStopped if shutdown is underway), or loads the versioned model
// and scores it directly, bypassing coalescing, for any other version.
func (c *Coordinator) score(ctx context.Context, rows []model.Row, version string) ([]model.Prediction, error) {
	if c.scheduler != nil && version == c.registry.DefaultVersion() {
		return c.scoreViaScheduler(ctx, rows)
	}
	return c.scoreDirect(rows, version)
}

// scoreViaScheduler submits every row independently to the Scheduler and
// awaits all promises concurrently, one goroutine per row joined with a
// WaitGroup, preserving positional correspondence in the returned slice.
func (c *Coordinator) scoreViaScheduler(ctx context.Context, rows []model.Row) ([]model.Prediction, error) {
	preds := make([]model.Prediction, len(rows))
	errs := make([]error, len(rows))

	var wg sync.WaitGroup
	for i, row := range rows {
		wg.Add(1)
		go func(i int, row model.Row) {
			defer wg.Done()
			pred, err := c.scheduler.Submit(ctx, row)
			preds[i] = pred
			errs[i] = err
		}(i, row)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return preds, nil
}

// scoreDirect loads the requested version and invokes its scorer directly,
// still behind that model's own device lock, without going through the
// Scheduler's coalescing.
func (c *Coordinator) scoreDirect(rows []model.Row, version string) ([]model.Prediction, error) {
	m, err := c.registry.Load(version)
	if err != nil {
		return nil, err
	}
	return m.Predict(rows)
}

// observeDrift updates the drift tracker from every row's numeric fields and
// logs a Warn record for every signal returned.
func (c *Coordinator) observeDrift(rows []model.Row) {
	if c.drift == nil {
		return
	}
	for _, row := range rows {
		for _, signal := range c.drift.Observe(row) {
			c.metrics.RecordDriftSignal(signal.Feature)
			c.log.Warn("drift detected",
				logging.String("feature", signal.Feature),
				logging.Float64("drift_score", signal.DriftScore),
				logging.Float64("baseline_mean", signal.BaselineMean),
				logging.Float64("current_mean", signal.CurrentMean),
			)
		}
	}
}

// EnqueueBatch delegates an offline scoring run to the Job Manager, using
// the chunked scorer described in 4.D so the shared device lock is yielded
// periodically for the Scheduler's online traffic. It resolves the same
// effective-version snapshot rule as Predict.
func (c *Coordinator) EnqueueBatch(ctx context.Context, rows []model.Row, version string) (string, error) {
	effectiveVersion := version
	if effectiveVersion == "" {
		effectiveVersion = c.registry.DefaultVersion()
	}

	jobFn := func(ctx context.Context) (interface{}, error) {
		m, err := c.registry.Load(effectiveVersion)
		if err != nil {
			c.metrics.RecordJobTerminal(string(jobmanager.StatusFailed))
			return nil, err
		}

		preds, err := jobmanager.ChunkedPredict(rows, m.Predict, c.chunkSize, c.yieldInterval)
		if err != nil {
			c.metrics.RecordJobTerminal(string(jobmanager.StatusFailed))
			return nil, err
		}

		c.observeDrift(rows)
		c.metrics.RecordJobTerminal(string(jobmanager.StatusCompleted))
		return PredictOutput{Predictions: preds, Version: effectiveVersion}, nil
	}

	jobID, err := c.jobManager.Submit(jobFn)
	if err != nil {
		return "", c.mapError(err)
	}
	return jobID, nil
}

// BatchStatus returns the job's current status and, once available, its
// result.
func (c *Coordinator) BatchStatus(jobID string) (jobmanager.Record, error) {
	rec, err := c.jobManager.Result(jobID)
	if err != nil {
		return jobmanager.Record{}, c.mapError(err)
	}
	return rec, nil
}

// Health attempts to resolve the default version, reporting "ready" on
// success and "degraded" otherwise — e.g. when the registry has no default
// loaded yet.
func (c *Coordinator) Health(ctx context.Context) HealthStatus {
	version := c.registry.DefaultVersion()
	status := "ready"
	if _, err := c.registry.Load(version); err != nil {
		status = "degraded"
	}
	return HealthStatus{Status: status, DefaultModel: version}
}

// ListModels returns the versions currently loaded and the current default,
// the thin accessor described in 4.F.
func (c *Coordinator) ListModels() (loadedVersions []string, defaultVersion string) {
	return c.registry.LoadedVersions(), c.registry.DefaultVersion()
}

// LoadModel loads version into the registry without changing the default.
func (c *Coordinator) LoadModel(version string) error {
	_, err := c.registry.Load(version)
	return c.mapError(err)
}

// UnloadModel evicts version from the registry. Refuses to unload the
// current default.
func (c *Coordinator) UnloadModel(version string) error {
	return c.mapError(c.registry.Unload(version))
}

// PromoteModel loads version if necessary and makes it the registry's
// default.
func (c *Coordinator) PromoteModel(version string) error {
	return c.mapError(c.registry.Promote(version))
}

// mapError passes already-typed AppErrors through unchanged — their
// ErrorCode already carries the correct HTTP status per §7 — and wraps
// anything else as an internal failure so no raw error ever reaches a
// caller.
func (c *Coordinator) mapError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errors.AppError); ok {
		return err
	}
	return errors.Internal("unexpected failure").WithCause(err)
}
