// Package config defines the configuration structures for the inference
// server.  No I/O or parsing logic lives here — only plain data types and
// validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// SchedulerConfig holds batch scheduler tunables.
//
// MaxLatency is expressed in the environment as whole milliseconds
// (MAX_BATCH_LATENCY_MS); it is excluded from viper's struct decoding
// (mapstructure:"-") and assigned explicitly by the loader so a plain
// integer string does not trip time.ParseDuration's unit requirement.
type SchedulerConfig struct {
	MaxBatchSize int           `mapstructure:"max_batch_size"`
	MaxLatency   time.Duration `mapstructure:"-"`
	MaxQueueSize int           `mapstructure:"max_queue_size"`
}

// BreakerConfig holds circuit breaker tunables.
//
// RecoveryTimeout is expressed in the environment as whole milliseconds
// (BREAKER_RECOVERY_TIMEOUT_MS); see SchedulerConfig.MaxLatency for why it
// is excluded from struct decoding and assigned explicitly by the loader.
type BreakerConfig struct {
	FailureThreshold int           `mapstructure:"failure_threshold"`
	RecoveryTimeout  time.Duration `mapstructure:"-"`
}

// JobManagerConfig holds asynchronous batch job tunables.
//
// YieldInterval is expressed in the environment as whole milliseconds
// (JOB_YIELD_MS); see SchedulerConfig.MaxLatency for why it is excluded from
// struct decoding and assigned explicitly by the loader.
type JobManagerConfig struct {
	MaxWorkers    int           `mapstructure:"max_workers"`
	ChunkSize     int           `mapstructure:"chunk_size"`
	YieldInterval time.Duration `mapstructure:"-"`
	JobsDir       string        `mapstructure:"jobs_dir"`
}

// DriftConfig holds feature-drift tracker tunables.
type DriftConfig struct {
	Window    int     `mapstructure:"window"`
	Threshold float64 `mapstructure:"threshold"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure for the inference server.
// Every component reads its settings from the relevant sub-struct.
type Config struct {
	Env                 string        `mapstructure:"env"`
	ServiceName         string        `mapstructure:"service_name"`
	RegistryRoot        string        `mapstructure:"registry_root"`
	DefaultModelVersion string        `mapstructure:"default_model_version"`
	ListenAddr          string        `mapstructure:"listen_addr"`
	// RequestTimeout is expressed in the environment as whole seconds
	// (REQUEST_TIMEOUT_SECONDS); see SchedulerConfig.MaxLatency for why it is
	// excluded from struct decoding and assigned explicitly by the loader.
	RequestTimeout time.Duration `mapstructure:"-"`

	// ShutdownTimeout bounds how long the process entrypoint waits for
	// in-flight HTTP/scheduler/job-manager work to drain on SIGINT/SIGTERM
	// before exiting anyway. Expressed in the environment as whole seconds
	// (SHUTDOWN_TIMEOUT_SECONDS); excluded from struct decoding for the same
	// reason as RequestTimeout.
	ShutdownTimeout time.Duration `mapstructure:"-"`

	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	JobManager JobManagerConfig `mapstructure:"job_manager"`
	Drift      DriftConfig      `mapstructure:"drift"`
	Log        LogConfig        `mapstructure:"log"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of the fully-populated Config.
// It returns the first error encountered; callers should treat any error as
// fatal and refuse to start the server.
func (c *Config) Validate() error {
	if c.RegistryRoot == "" {
		return fmt.Errorf("config: registry_root is required")
	}
	if c.DefaultModelVersion == "" {
		return fmt.Errorf("config: default_model_version is required")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr is required")
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("config: shutdown_timeout must be > 0, got %s", c.ShutdownTimeout)
	}

	if c.Scheduler.MaxBatchSize < 1 {
		return fmt.Errorf("config: scheduler.max_batch_size must be ≥ 1, got %d", c.Scheduler.MaxBatchSize)
	}
	if c.Scheduler.MaxLatency <= 0 {
		return fmt.Errorf("config: scheduler.max_latency must be > 0, got %s", c.Scheduler.MaxLatency)
	}
	if c.Scheduler.MaxQueueSize < 1 {
		return fmt.Errorf("config: scheduler.max_queue_size must be ≥ 1, got %d", c.Scheduler.MaxQueueSize)
	}

	if c.Breaker.FailureThreshold < 1 {
		return fmt.Errorf("config: breaker.failure_threshold must be ≥ 1, got %d", c.Breaker.FailureThreshold)
	}
	if c.Breaker.RecoveryTimeout <= 0 {
		return fmt.Errorf("config: breaker.recovery_timeout must be > 0, got %s", c.Breaker.RecoveryTimeout)
	}

	if c.JobManager.MaxWorkers < 1 {
		return fmt.Errorf("config: job_manager.max_workers must be ≥ 1, got %d", c.JobManager.MaxWorkers)
	}
	if c.JobManager.ChunkSize < 1 {
		return fmt.Errorf("config: job_manager.chunk_size must be ≥ 1, got %d", c.JobManager.ChunkSize)
	}
	if c.JobManager.JobsDir == "" {
		return fmt.Errorf("config: job_manager.jobs_dir is required")
	}

	if c.Drift.Window < 1 {
		return fmt.Errorf("config: drift.window must be ≥ 1, got %d", c.Drift.Window)
	}
	if c.Drift.Threshold <= 0 {
		return fmt.Errorf("config: drift.threshold must be > 0, got %f", c.Drift.Threshold)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	return nil
}
