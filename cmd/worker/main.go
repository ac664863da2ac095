package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-scheduling/config"
	"github.com/jwalitptl/clinic-scheduling/internal/bootstrap"
	"github.com/jwalitptl/clinic-scheduling/internal/handler/health"
	promhandler "github.com/jwalitptl/clinic-scheduling/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduling/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}
	if cfg.Database.Driver != config.DriverPostgres {
		log.Fatal().Str("driver", cfg.Database.Driver).Msg("The outbox worker needs a shared postgres store")
	}

	workerID := fmt.Sprintf("worker-%s", generateWorkerID())
	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig()).
		WithFields(map[string]interface{}{"worker_id": workerID})

	reg := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics("outbox", reg)

	storage, err := bootstrap.OpenStorage(cfg.Database, appMetrics, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to open storage")
	}
	defer storage.Close()

	broker, err := bootstrap.NewBroker(cfg, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to connect to message broker")
	}
	defer broker.Close()

	processor, err := worker.NewOutboxProcessor(
		storage.Repos.Tx,
		storage.Repos.Outbox,
		broker,
		cfg.Outbox.ToWorkerConfig(cfg.Broker.Channel),
		appLogger,
		appMetrics,
	)
	if err != nil {
		appLogger.Fatal(err, "Invalid outbox configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Outbox.PurgeSchedule, func() {
		if _, err := processor.Purge(ctx); err != nil {
			appLogger.Error(err, "Failed to purge outbox")
		}
	}); err != nil {
		appLogger.Fatal(err, "Invalid outbox purge schedule", "schedule", cfg.Outbox.PurgeSchedule)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := setupHealthServer(cfg.Monitoring, storage, reg)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error(err, "Health check server failed")
			stop()
		}
	}()

	processor.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Health check server forced to shutdown")
	}
}

func setupHealthServer(cfg config.MonitoringConfig, storage *bootstrap.Storage, reg *prometheus.Registry) *http.Server {
	engine := gin.New()
	engine.Use(gin.Recovery())
	health.NewHandler(storage.Pinger()).RegisterRoutes(engine)
	if cfg.PrometheusEnabled {
		engine.GET(cfg.MetricsPath, promhandler.New(reg).Handler())
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HealthPort),
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func generateWorkerID() string {
	// Generate a unique worker ID using hostname and timestamp
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return fmt.Sprintf("%s-%d", hostname, time.Now().UnixNano())
}
