// Package config provides configuration loading, defaults, and validation for
// the inference server.
package config

import (
	"fmt"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envBindings maps each Config field (by its mapstructure dotted path) to the
// exact environment variable name an operator sets, per the server's
// external-interface contract. Names are irregular by design — they predate
// this Go rendition and are preserved verbatim rather than normalized under a
// single prefix, so BindEnv is called explicitly per field instead of relying
// on viper's automatic prefix+replacer behavior.
var envBindings = map[string]string{
	"env":                   "APP_ENV",
	"service_name":          "SERVICE_NAME",
	"registry_root":         "MODEL_REGISTRY_PATH",
	"default_model_version": "DEFAULT_MODEL_VERSION",
	"listen_addr":           "LISTEN_ADDR",
	"request_timeout":       "REQUEST_TIMEOUT_SECONDS",
	"shutdown_timeout":      "SHUTDOWN_TIMEOUT_SECONDS",

	"scheduler.max_batch_size": "MAX_BATCH_SIZE",
	"scheduler.max_latency":    "MAX_BATCH_LATENCY_MS",
	"scheduler.max_queue_size": "MAX_QUEUE_SIZE",

	"breaker.failure_threshold": "BREAKER_FAILURE_THRESHOLD",
	"breaker.recovery_timeout":  "BREAKER_RECOVERY_TIMEOUT_MS",

	"job_manager.max_workers":    "BATCH_MAX_WORKERS",
	"job_manager.chunk_size":     "JOB_CHUNK_SIZE",
	"job_manager.yield_interval": "JOB_YIELD_MS",
	"job_manager.jobs_dir":       "JOBS_DIR",

	"drift.window":    "DRIFT_WINDOW",
	"drift.threshold": "DRIFT_THRESHOLD",

	"log.level":  "LOG_LEVEL",
	"log.format": "LOG_FORMAT",
}

// newViper builds a pre-configured Viper instance bound to every field in
// envBindings, plus optional YAML file support.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	return v
}

// Load reads the YAML file at configPath (if non-empty), merges environment
// variable overrides per envBindings, applies server defaults for unset
// fields, and validates the result. It returns a fully-populated *Config or a
// descriptive error.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
		}
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config entirely from the environment variables in
// envBindings, with no config file required. This is the preferred loading
// strategy for containerized deployments.
func LoadFromEnv() (*Config, error) {
	v := newViper()
	return unmarshalAndFinalize(v)
}

// unmarshalAndFinalize unmarshals viper state into a Config struct, applies
// defaults, and validates the result.
func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	// These fields are bound to plain-integer env vars (seconds or
	// milliseconds, per field) rather than duration strings, so they are
	// excluded from struct decoding above and assigned here with the
	// correct unit.
	if v.IsSet("request_timeout") {
		cfg.RequestTimeout = time.Duration(v.GetInt("request_timeout")) * time.Second
	}
	if v.IsSet("shutdown_timeout") {
		cfg.ShutdownTimeout = time.Duration(v.GetInt("shutdown_timeout")) * time.Second
	}
	if v.IsSet("scheduler.max_latency") {
		cfg.Scheduler.MaxLatency = time.Duration(v.GetInt("scheduler.max_latency")) * time.Millisecond
	}
	if v.IsSet("breaker.recovery_timeout") {
		cfg.Breaker.RecoveryTimeout = time.Duration(v.GetInt("breaker.recovery_timeout")) * time.Millisecond
	}
	if v.IsSet("job_manager.yield_interval") {
		cfg.JobManager.YieldInterval = time.Duration(v.GetInt("job_manager.yield_interval")) * time.Millisecond
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch monitors configPath for changes and invokes onChange with the newly
// parsed Config whenever the file is modified on disk. It is intended for
// hot-reloading the subset of knobs safe to change at runtime (scheduler,
// breaker, drift parameters) — not RegistryRoot or ListenAddr, which callers
// should ignore if present in onChange's argument.
//
// Watch is non-blocking; it starts a background goroutine managed by viper.
// If the changed file fails to parse, viper logs the read error and keeps the
// previously loaded values, and onChange still receives a Config built from
// them. If the resulting Config fails validation, onChange is NOT called and
// the error is dropped.
func Watch(configPath string, onChange func(*Config)) {
	v := newViper()
	v.SetConfigFile(configPath)

	_ = v.ReadInConfig()

	v.WatchConfig()
	v.OnConfigChange(func(_ fsnotify.Event) {
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			return
		}
		onChange(cfg)
	})
}

// MustLoad is a convenience wrapper around Load that panics on any error.
// It is intended for use in main() where a config-load failure is always fatal.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
