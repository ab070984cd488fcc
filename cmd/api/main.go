package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/iconforge/internal/api"
	"github.com/dunamismax/iconforge/internal/assets"
	"github.com/dunamismax/iconforge/internal/config"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/intake"
	"github.com/dunamismax/iconforge/internal/logging"
	"github.com/dunamismax/iconforge/internal/queue"
	"github.com/dunamismax/iconforge/internal/ratelimit"
	"github.com/dunamismax/iconforge/internal/service"
	"github.com/dunamismax/iconforge/internal/storage"
	"github.com/dunamismax/iconforge/internal/store"
	"github.com/dunamismax/iconforge/internal/telemetry"
	"github.com/dunamismax/iconforge/internal/transform"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
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
	logger := logging.New(cfg.Log, "api")
	gin.SetMode(cfg.HTTP.Mode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry, "api", logger)
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

	deps := api.Deps{
		Logger:    logger,
		Studio:    studio,
		Intake:    intake.New(objects, cfg.HTTP.MaxUploadBytes),
		Jobs:      repo,
		Publisher: publisher,
		Registry:  registry,
		HTTP:      cfg.HTTP,
		RateLimit: cfg.RateLimit,
	}

	if cfg.Queue.Enabled {
		if cfg.Database.DSN == "" {
			logger.Warn("queue enabled without a database; the worker will not see job records")
		}
		queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
		defer func() {
			if err := queueClient.Close(); err != nil {
				logger.WithError(err).Warn("queue client close failed")
			}
		}()
		deps.Queue = queueClient
	}

	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "")
		if err != nil {
			logger.WithError(err).Fatal("configure rate limiter")
		}
		deps.Limiter = limiter
	}

	app, err := api.NewServer(deps)
	if err != nil {
		logger.WithError(err).Fatal("build http server")
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.HTTP.Addr,
			"storage": cfg.Storage.Backend,
			"queue":   cfg.Queue.Enabled,
		}).Info("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("graceful shutdown failed")
	}
}
