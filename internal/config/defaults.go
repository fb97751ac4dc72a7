// Package config provides configuration loading, defaults, and validation for
// the inference server.
package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultEnv                 = "development"
	DefaultServiceName         = "inference-server"
	DefaultDefaultModelVersion = "v1"
	DefaultListenAddr          = ":8080"
	DefaultRequestTimeout      = 30 * time.Second
	DefaultShutdownTimeout     = 15 * time.Second

	DefaultSchedulerMaxBatchSize = 32
	DefaultSchedulerMaxLatency   = 10 * time.Millisecond
	DefaultSchedulerMaxQueueSize = 1024

	DefaultBreakerFailureThreshold = 5
	DefaultBreakerRecoveryTimeout  = 30 * time.Second

	DefaultJobManagerMaxWorkers    = 2
	DefaultJobManagerChunkSize     = 8
	DefaultJobManagerYieldInterval = 50 * time.Millisecond
	DefaultJobManagerJobsDir       = "./data/jobs"

	DefaultDriftWindow    = 200
	DefaultDriftThreshold = 0.15

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// ─────────────────────────────────────────────────────────────────────────────
// ApplyDefaults fills zero-value fields in cfg with well-known defaults.
// It must be called after unmarshalling raw config data and before Validate()
// so that optional-but-defaulted fields are never seen as missing.
// ─────────────────────────────────────────────────────────────────────────────

// ApplyDefaults fills every zero-value field in cfg with the server default.
// Fields that have already been set by the caller (non-zero values) are left
// unchanged so that explicit configuration always wins.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Env == "" {
		cfg.Env = DefaultEnv
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = DefaultServiceName
	}
	if cfg.DefaultModelVersion == "" {
		cfg.DefaultModelVersion = DefaultDefaultModelVersion
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = DefaultListenAddr
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = DefaultRequestTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Scheduler.MaxBatchSize == 0 {
		cfg.Scheduler.MaxBatchSize = DefaultSchedulerMaxBatchSize
	}
	if cfg.Scheduler.MaxLatency == 0 {
		cfg.Scheduler.MaxLatency = DefaultSchedulerMaxLatency
	}
	if cfg.Scheduler.MaxQueueSize == 0 {
		cfg.Scheduler.MaxQueueSize = DefaultSchedulerMaxQueueSize
	}

	if cfg.Breaker.FailureThreshold == 0 {
		cfg.Breaker.FailureThreshold = DefaultBreakerFailureThreshold
	}
	if cfg.Breaker.RecoveryTimeout == 0 {
		cfg.Breaker.RecoveryTimeout = DefaultBreakerRecoveryTimeout
	}

	if cfg.JobManager.MaxWorkers == 0 {
		cfg.JobManager.MaxWorkers = DefaultJobManagerMaxWorkers
	}
	if cfg.JobManager.ChunkSize == 0 {
		cfg.JobManager.ChunkSize = DefaultJobManagerChunkSize
	}
	if cfg.JobManager.YieldInterval == 0 {
		cfg.JobManager.YieldInterval = DefaultJobManagerYieldInterval
	}
	if cfg.JobManager.JobsDir == "" {
		cfg.JobManager.JobsDir = DefaultJobManagerJobsDir
	}

	if cfg.Drift.Window == 0 {
		cfg.Drift.Window = DefaultDriftWindow
	}
	if cfg.Drift.Threshold == 0 {
		cfg.Drift.Threshold = DefaultDriftThreshold
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}
}
