package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/dunamismax/iconforge/internal/assets"
	"github.com/dunamismax/iconforge/internal/config"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/logging"
	"github.com/dunamismax/iconforge/internal/service"
	"github.com/dunamismax/iconforge/internal/storage"
	"github.com/dunamismax/iconforge/internal/store"
	"github.com/dunamismax/iconforge/internal/telemetry"
	"github.com/dunamismax/iconforge/internal/transform"
	"github.com/dunamismax/iconforge/internal/webhook"
	"github.com/dunamismax/iconforge/internal/worker"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not load .env")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger := logging.New(cfg.Log, "worker")
	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry, "worker", logger)
	if err != nil {
		logger.WithError(err).Fatal("setup tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	if err := transform.Startup(); err != nil {
		logger.WithError(err).Fatal("start image runtime")
	}
	defer transform.Shutdown()

	objects, err := storage.Open(ctx, cfg.Storage)
	if err != nil {
		logger.WithError(err).Fatal("open object storage")
	}

	repo, err := store.Open(ctx, cfg.Database.DSN)
	if err != nil {
		logger.WithError(err).Fatal("open repository")
	}
	defer repo.Close()

	publisher, err := events.Open(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		logger.WithError(err).Fatal("open event publisher")
	}
	defer publisher.Close()

	registry := telemetry.NewRegistry()
	studio := service.NewStudio(
		objects,
		repo,
		assets.NewLibrary(cfg.Assets.Dir, cfg.Transform.MaxPixels),
		publisher,
		logger.WithField("module", "studio"),
		service.Options{
			MaxPixels:       cfg.Transform.MaxPixels,
			ArchivePassword: cfg.Archive.Password,
			Registerer:      registry,
		},
	)

	webhookClient := webhook.NewClient(webhook.Config{
		SigningSecret:  cfg.Webhook.SigningSecret,
		Timeout:        cfg.Webhook.Timeout,
		MaxAttempts:    cfg.Webhook.MaxAttempts,
		InitialBackoff: cfg.Webhook.InitialBackoff,
		MaxBackoff:     cfg.Webhook.MaxBackoff,
	})

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, studio, webhookClient, repo, publisher, registry)
	if err != nil {
		logger.WithError(err).Fatal("build worker")
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.WithFields(logrus.Fields{
		"concurrency":     cfg.Worker.Concurrency,
		"max_active_jobs": cfg.Worker.MaxActiveJobs,
		"queue":           cfg.Queue.Name,
		"redis":           cfg.Queue.RedisAddr,
		"metrics_addr":    cfg.Worker.MetricsAddr,
	}).Info("starting worker")

	if err := srv.Run(); err != nil {
		logger.WithError(err).Error("worker failed")
	}
}
