package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dunamismax/iconforge/internal/config"
	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/queue"
	"github.com/dunamismax/iconforge/internal/store"
	"github.com/dunamismax/iconforge/internal/webhook"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// IconSetRunner produces the icon-set archive for a staged upload.
type IconSetRunner interface {
	IconSet(ctx context.Context, token, sourceKey string) (domain.DerivedAsset, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type Server struct {
	logger        logrus.FieldLogger
	server        *asynq.Server
	sem           chan struct{}
	studio        IconSetRunner
	webhookClient webhookSender
	jobStore      store.JobStore
	publisher     events.Publisher
	metrics       *metrics
	tracer        trace.Tracer
}

func NewServer(
	logger logrus.FieldLogger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	studio IconSetRunner,
	webhookClient *webhook.Client,
	jobStore store.JobStore,
	publisher events.Publisher,
	registry *prometheus.Registry,
) (*Server, error) {
	if studio == nil {
		return nil, fmt.Errorf("icon set runner is required")
	}
	if jobStore == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.WithFields(logrus.Fields{
						"task_type": task.Type(),
						"retry":     retried,
						"max_retry": maxRetry,
					}).WithError(err).Warn("task failed")
				}),
			},
		),
		sem:           make(chan struct{}, max(1, workerCfg.MaxActiveJobs)),
		studio:        studio,
		jobStore:      jobStore,
		publisher:     publisher,
		metrics:       newMetrics(registry),
		tracer:        otel.Tracer("iconforge/worker"),
	}
	if webhookClient != nil {
		s.webhookClient = webhookClient
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeGenerateIconSet, s.handleIconSet)
	return s.server.Run(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleIconSet(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.JobStatusFailed

	payload, err := queue.ParseIconSetPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.generate_icon_set", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_key", payload.SourceKey),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(outcome).Inc()
	}()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		outcome = "cancelled"
		return ctx.Err()
	}
	s.metrics.activeJobs.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeJobs.Dec()
	}()

	log := s.logger.WithFields(logrus.Fields{
		"job_id":     payload.JobID,
		"source_key": payload.SourceKey,
	})

	// asynq may redeliver a task after the job already reached a final state.
	if job, ok, err := s.jobStore.Get(ctx, payload.JobID); err == nil && ok && job.Finished() {
		outcome = "duplicate"
		log.WithField("status", job.Status).Info("job already finished, skipping")
		return nil
	}

	log.Info("generating icon set")
	s.updateJob(ctx, payload.JobID, domain.JobUpdate{Status: domain.JobStatusProcessing})

	asset, err := s.studio.IconSet(ctx, payload.JobID, payload.SourceKey)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "icon set failed")

		permanent := permanentFailure(err)
		if !permanent && !lastAttempt(ctx) {
			outcome = "retrying"
			return fmt.Errorf("generate icon set: %w", err)
		}

		s.updateJob(ctx, payload.JobID, domain.JobUpdate{Status: domain.JobStatusFailed, Error: err.Error()})
		s.publish(ctx, events.Event{Type: events.TypeIconSetFailed, JobID: payload.JobID, Token: payload.JobID, Error: err.Error()})
		s.dispatchWebhook(ctx, payload, webhook.EventIconSetFailed, webhook.IconSetNotification{
			JobID:       payload.JobID,
			Status:      domain.JobStatusFailed,
			SourceKey:   payload.SourceKey,
			Error:       err.Error(),
			RequestedAt: payload.RequestedAt,
			FinishedAt:  time.Now().UTC(),
		})
		if permanent {
			return fmt.Errorf("generate icon set: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("generate icon set: %w", err)
	}

	outcome = domain.JobStatusSucceeded
	s.metrics.archiveBytes.Add(float64(asset.Bytes))
	s.updateJob(ctx, payload.JobID, domain.JobUpdate{Status: domain.JobStatusSucceeded, ArchiveKey: asset.Key})
	s.publish(ctx, events.Event{Type: events.TypeIconSetDone, JobID: payload.JobID, Token: payload.JobID, Asset: &asset})
	log.WithFields(logrus.Fields{
		"archive_key": asset.Key,
		"bytes":       asset.Bytes,
		"duration_ms": time.Since(startedAt).Milliseconds(),
	}).Info("icon set generated")

	s.dispatchWebhook(ctx, payload, webhook.EventIconSetCompleted, webhook.IconSetNotification{
		JobID:       payload.JobID,
		Status:      domain.JobStatusSucceeded,
		SourceKey:   payload.SourceKey,
		ArchiveKey:  asset.Key,
		Icons:       len(domain.IconSizeTable),
		RequestedAt: payload.RequestedAt,
		FinishedAt:  time.Now().UTC(),
	})
	span.SetStatus(codes.Ok, "generated")
	return nil
}

// permanentFailure reports errors that a retry cannot fix.
func permanentFailure(err error) bool {
	return errors.Is(err, domain.ErrConversion) ||
		errors.Is(err, domain.ErrImageTooLarge) ||
		errors.Is(err, domain.ErrAssetNotFound) ||
		errors.Is(err, domain.ErrInvalidSpec)
}

func lastAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return retried >= maxRetry
}

func (s *Server) updateJob(ctx context.Context, jobID string, update domain.JobUpdate) {
	if _, err := s.jobStore.Update(ctx, jobID, update); err != nil {
		s.logger.WithFields(logrus.Fields{
			"job_id": jobID,
			"status": update.Status,
		}).WithError(err).Error("job update failed")
	}
}

func (s *Server) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithField("job_id", event.JobID).WithError(err).Warn("job event not published")
	}
}

// dispatchWebhook delivers the notification. Delivery failures are logged
// and counted but never fail the job; the archive is already stored.
func (s *Server) dispatchWebhook(ctx context.Context, payload queue.IconSetPayload, event string, body webhook.IconSetNotification) {
	if payload.WebhookURL == "" || s.webhookClient == nil {
		return
	}

	if err := s.webhookClient.Send(ctx, payload.WebhookURL, event, body); err != nil {
		s.metrics.webhookFailures.Inc()
		s.logger.WithFields(logrus.Fields{
			"job_id": payload.JobID,
			"event":  event,
		}).WithError(err).Warn("webhook delivery failed")
	}
}
