// Command inference-server is the process entry point: it loads
// configuration, wires the registry, breaker, scheduler, job manager, drift
// tracker, metrics collector, and coordinator together, serves the HTTP API,
// and shuts everything down in order on SIGINT/SIGTERM. Grounded on the
// teacher's cmd/apiserver/main.go, trimmed of the gRPC server this spec has
// no use for.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/KeyIP-Intelligence/internal/breaker"
	"github.com/turtacn/KeyIP-Intelligence/internal/config"
	"github.com/turtacn/KeyIP-Intelligence/internal/coordinator"
	"github.com/turtacn/KeyIP-Intelligence/internal/drift"
	"github.com/turtacn/KeyIP-Intelligence/internal/httpapi"
	"github.com/turtacn/KeyIP-Intelligence/internal/jobmanager"
	"github.com/turtacn/KeyIP-Intelligence/internal/logging"
	"github.com/turtacn/KeyIP-Intelligence/internal/metrics"
	"github.com/turtacn/KeyIP-Intelligence/internal/registry"
	"github.com/turtacn/KeyIP-Intelligence/internal/scheduler"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: using default configuration: %v\n", err)
		cfg, err = config.LoadFromEnv()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to build default configuration: %v\n", err)
			os.Exit(1)
		}
	}

	logger, err := logging.NewLogger(logging.LogConfig{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("starting inference server",
		logging.String("env", cfg.Env),
		logging.String("service", cfg.ServiceName),
		logging.String("default_model_version", cfg.DefaultModelVersion),
	)

	collector, err := metrics.NewMetricsCollector(metrics.CollectorConfig{
		Namespace:            cfg.ServiceName,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger.Named("metrics"))
	if err != nil {
		logger.Error("failed to initialize metrics collector", logging.Err(err))
		os.Exit(1)
	}
	serverMetrics := metrics.NewServerMetrics(collector)

	reg := registry.NewFilesystem(cfg.RegistryRoot, cfg.DefaultModelVersion, logger.Named("registry"))

	br := breaker.New(cfg.DefaultModelVersion, cfg.Breaker.FailureThreshold, cfg.Breaker.RecoveryTimeout, breaker.AlwaysExpected, logger.Named("breaker"))
	br.OnTransition(serverMetrics.RecordBreakerTransition)

	sched := scheduler.New(cfg.DefaultModelVersion, coordinator.NewDefaultPredictFunc(reg, br), scheduler.Config{
		MaxBatchSize: cfg.Scheduler.MaxBatchSize,
		MaxLatency:   cfg.Scheduler.MaxLatency,
		MaxQueueSize: cfg.Scheduler.MaxQueueSize,
	}, logger.Named("scheduler"))
	sched.OnBatchFlush(func(queueDepthAfter, batchSize int) {
		serverMetrics.RecordBatchFlush(cfg.DefaultModelVersion, queueDepthAfter, batchSize)
	})
	sched.Start()

	jm, err := jobmanager.New(cfg.JobManager.MaxWorkers, cfg.JobManager.JobsDir, logger.Named("jobmanager"))
	if err != nil {
		logger.Error("failed to initialize job manager", logging.Err(err))
		os.Exit(1)
	}
	jm.Start()

	dt := drift.New(cfg.Drift.Window, cfg.Drift.Threshold)

	coord := coordinator.New(reg, sched, jm, dt, serverMetrics, logger.Named("coordinator"), cfg.JobManager.ChunkSize, cfg.JobManager.YieldInterval)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Coordinator:    coord,
		Env:            cfg.Env,
		Logger:         logger.Named("http"),
		MetricsHandler: collector.Handler(),
	})

	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            cfg.ListenAddr,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, router, logger.Named("http"))

	serverCtx, cancelServer := context.WithCancel(context.Background())
	go func() {
		if err := srv.Start(serverCtx); err != nil {
			logger.Error("http server error", logging.Err(err))
		}
	}()
	logger.Info("http server listening", logging.String("addr", cfg.ListenAddr))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancelShutdown()

	cancelServer()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", logging.Err(err))
	}

	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Error("scheduler shutdown error", logging.Err(err))
	}

	if err := jm.Stop(shutdownCtx); err != nil {
		logger.Error("job manager shutdown error", logging.Err(err))
	}

	logger.Info("inference server stopped")
}

// loadConfig loads configuration from path, refusing to silently fall back
// when the caller named a specific file that does not exist.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return nil, fmt.Errorf("no config path given")
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}
	return config.Load(path)
}
