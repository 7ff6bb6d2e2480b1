// gridbatch-service is the HTTP API server for asynchronous batch script
// submission and result retrieval.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbatch/internal/api"
	"gridbatch/internal/config"
	"gridbatch/internal/dfs"
	"gridbatch/internal/engine/docker"
	"gridbatch/internal/health"
	"gridbatch/internal/notify"
	"gridbatch/internal/observability"
	"gridbatch/internal/results"
	"gridbatch/internal/stage"
	"gridbatch/internal/submission"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := run(); err != nil {
		slog.Error("Service failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	svcCfg := config.LoadServiceConfig()
	stageCfg := stage.LoadConfigFromEnv()
	engineCfg := docker.LoadConfigFromEnv()
	hdfsCfg := dfs.LoadHDFSConfigFromEnv()
	submissionCfg := submission.LoadConfigFromEnv()

	// The engine mounts the staging directory into stage containers, so
	// both must agree on its location.
	engineCfg.StagingDir = stageCfg.Dir

	// Setup metrics
	metrics, metricsHandler, err := observability.NewMetrics(ctx)
	if err != nil {
		return err
	}

	// Create Docker engine (automatically cleans up expired stage containers)
	eng, err := docker.New(ctx, engineCfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	slog.Info("Connected to Docker daemon")

	// Connect to the distributed filesystem holding job results
	hdfsClient, err := dfs.DialHDFS(hdfsCfg)
	if err != nil {
		return err
	}
	defer hdfsClient.Close()

	slog.Info("Connected to HDFS namenode", "addresses", hdfsCfg.Addresses)

	// Create health checker
	healthChecker := health.NewChecker(eng, hdfsClient)

	// Create the submission pipeline
	stager := stage.New(stageCfg)
	notifier := notify.New(submissionCfg.NotifyTimeout)
	coordinator := submission.New(stager, eng, notifier, metrics, submissionCfg)

	// Create API router
	router := api.NewRouter(api.RouterConfig{
		Coordinator:   coordinator,
		Streamer:      results.NewStreamer(hdfsClient),
		Metrics:       metrics,
		HealthChecker: healthChecker,
	})

	// Create API server
	apiServer := &http.Server{
		Addr:         ":" + svcCfg.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // result streams may outlive any fixed write budget
		IdleTimeout:  60 * time.Second,
	}

	// Create metrics server
	metricsMux := http.NewServeMux()
	metricsMux.Handle("GET /metrics", metricsHandler)
	metricsServer := &http.Server{
		Addr:         ":" + svcCfg.MetricsPort,
		Handler:      metricsMux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	// Channel to capture server errors
	serverErr := make(chan error, 1)

	// Start API server
	go func() {
		slog.Info("Starting API server", "port", svcCfg.Port)
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Start metrics server
	go func() {
		slog.Info("Starting metrics server", "port", svcCfg.MetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// shutdown closes both servers gracefully
	shutdown := func(timeout time.Duration) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := apiServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("API server shutdown error", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for interrupt signal or server error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("Received shutdown signal", "signal", sig)
	case err := <-serverErr:
		slog.Error("Server failed to start", "error", err)
		shutdown(5 * time.Second)
		return err
	}

	// Phase 1: Mark service as unhealthy for load balancer draining
	healthChecker.SetShuttingDown()

	// Wait for load balancers to stop sending traffic
	if svcCfg.ShutdownDrainWait > 0 {
		slog.Info("Waiting for traffic to drain", "duration", svcCfg.ShutdownDrainWait)
		time.Sleep(svcCfg.ShutdownDrainWait)
	}

	// Phase 2: Graceful shutdown - stop accepting new connections, finish in-flight requests
	slog.Info("Starting graceful shutdown")
	shutdown(25 * time.Second)

	// Phase 3: Drain the submission coordinator. Polls that outlast the
	// budget are abandoned; their stage containers keep running in the
	// engine and their callbacks are never sent.
	slog.Info("Draining submission coordinator")
	drainCtx, drainCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer drainCancel()
	if err := coordinator.Close(drainCtx); err != nil {
		slog.Warn("Coordinator shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
	return nil
}
