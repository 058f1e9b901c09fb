package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmehra2102/prod-golang-projects/medrx/internal/config"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/handler"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/handler/middleware"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/notify"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/repository"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/scheduler"
	"github.com/dmehra2102/prod-golang-projects/medrx/internal/service"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/secrets"
	"github.com/dmehra2102/prod-golang-projects/medrx/pkg/tracer"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "medrx: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := secrets.Apply(ctx, cfg); err != nil {
		return fmt.Errorf("resolving secrets: %w", err)
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	log = log.With(
		zap.String("service", cfg.App.Name),
		zap.String("version", cfg.App.Version),
		zap.String("env", cfg.App.Environment),
	)

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return err
	}

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := database.Migrate(db, log); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	m := metrics.NewCollector("medrx", prometheus.DefaultRegisterer)

	var publisher notify.Publisher = notify.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = notify.NewKafkaPublisher(cfg.Kafka, log)
		log.Info("dispatch events enabled",
			zap.Strings("brokers", cfg.Kafka.Brokers),
			zap.String("topic", cfg.Kafka.DispatchTopic),
		)
	}

	auditSvc := service.NewAuditService(repository.NewAuditRepository(db), m, log)
	prescriptionSvc := service.NewPrescriptionService(
		repository.NewPrescriptionRepository(db),
		repository.NewDispatchLedger(db),
		publisher, auditSvc, m, log,
	)
	pharmacySvc := service.NewPharmacyService(repository.NewPharmacyDirectory(db))

	limiter := middleware.NewRateLimiter(cfg.RateLimit, m)
	go limiter.Cleanup(ctx, time.Minute)

	jobs := scheduler.New(sqlDB, m, cfg.Scheduler.DBStatsInterval, log)
	if err := jobs.Start(); err != nil {
		return err
	}

	if cfg.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router, err := handler.NewRouter(handler.RouterDeps{
		Prescriptions:  prescriptionSvc,
		Pharmacies:     pharmacySvc,
		Tokens:         auth.NewJWTManager(cfg.JWT),
		RateLimiter:    limiter,
		Metrics:        m,
		Gatherer:       prometheus.DefaultGatherer,
		Ready:          func(ctx context.Context) error { return database.Ping(ctx, db) },
		Log:            log,
		TrustedProxies: cfg.Server.TrustedProxies,
	})
	if err != nil {
		jobs.Stop()
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.Error("http server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http server shutdown", zap.Error(err))
	}
	jobs.Stop()
	auditSvc.Shutdown()
	if err := publisher.Close(); err != nil {
		log.Error("closing publisher", zap.Error(err))
	}
	if err := tracer.Shutdown(shutdownCtx, tp); err != nil {
		log.Error("tracer shutdown", zap.Error(err))
	}
	if err := database.Close(db); err != nil {
		log.Error("closing database", zap.Error(err))
	}

	log.Info("server stopped")
	return nil
}
