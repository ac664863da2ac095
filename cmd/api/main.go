package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-scheduling/config"
	"github.com/jwalitptl/clinic-scheduling/internal/bootstrap"
	"github.com/jwalitptl/clinic-scheduling/internal/handler/health"
	promhandler "github.com/jwalitptl/clinic-scheduling/internal/handler/prometheus"
	schedulinghandler "github.com/jwalitptl/clinic-scheduling/internal/handler/scheduling"
	"github.com/jwalitptl/clinic-scheduling/internal/middleware"
	"github.com/jwalitptl/clinic-scheduling/internal/router"
	"github.com/jwalitptl/clinic-scheduling/internal/service/scheduling"
	"github.com/jwalitptl/clinic-scheduling/pkg/auth"
	"github.com/jwalitptl/clinic-scheduling/pkg/logger"
	"github.com/jwalitptl/clinic-scheduling/pkg/metrics"
	"github.com/jwalitptl/clinic-scheduling/pkg/validator"
	"github.com/jwalitptl/clinic-scheduling/pkg/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	appLogger := logger.NewLogger(cfg.Log.ToLoggerConfig())

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.NewMetrics("scheduling", reg)

	storage, err := bootstrap.OpenStorage(cfg.Database, appMetrics, appLogger)
	if err != nil {
		appLogger.Fatal(err, "Failed to open storage")
	}
	defer storage.Close()

	svc := scheduling.New(storage.Repos, appMetrics, appLogger)

	jwtSvc := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer)
	authMiddleware := middleware.NewAuthMiddleware(jwtSvc, storage.Repos.Staff, cfg.Cache.PositionsTTL, cfg.Cache.CleanupInterval)

	var metricsH *promhandler.Handler
	if cfg.Monitoring.PrometheusEnabled {
		metricsH = promhandler.New(reg)
	}

	r := router.NewRouter(
		authMiddleware,
		schedulinghandler.NewHandler(svc, validator.New()),
		health.NewHandler(storage.Pinger()),
		metricsH,
		appLogger,
		router.RouterConfig{
			Mode:             cfg.Server.Mode,
			RequestTimeout:   cfg.Server.RequestTimeout,
			RateLimitEnabled: cfg.RateLimit.Enabled,
			RateLimit:        rate.Limit(cfg.RateLimit.RequestsPerSecond),
			RateBurst:        cfg.RateLimit.Burst,
			MetricsPrefix:    "http",
			MetricsPath:      cfg.Monitoring.MetricsPath,
			Registerer:       reg,
		},
	)
	r.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The memory store lives in this process, so its outbox is drained here.
	if cfg.Database.Driver == config.DriverMemory {
		broker, err := bootstrap.NewBroker(cfg, appLogger)
		if err != nil {
			appLogger.Fatal(err, "Failed to connect to message broker")
		}
		defer broker.Close()

		processor, err := worker.NewOutboxProcessor(storage.Repos.Tx, storage.Repos.Outbox, broker,
			cfg.Outbox.ToWorkerConfig(cfg.Broker.Channel), appLogger, appMetrics)
		if err != nil {
			appLogger.Fatal(err, "Invalid outbox configuration")
		}
		go processor.Start(ctx)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		appLogger.Info("Starting server", "port", cfg.Server.Port, "driver", cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(err, "Failed to start server")
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(err, "Server forced to shutdown")
	}

	appLogger.Info("Server exited properly")
}
