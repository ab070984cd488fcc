package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/id"
	"github.com/dunamismax/iconforge/internal/queue"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type jobResponse struct {
	domain.Job
	DownloadURL string `json:"download_url,omitempty"`
	StatusURL   string `json:"status_url"`
}

func (s *Server) handleListAssets(c *gin.Context) {
	assets, err := s.studio.Assets(c.Request.Context(), c.Param("token"))
	if err != nil {
		if errors.Is(err, domain.ErrAssetNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown token"})
			return
		}
		s.logger.WithError(err).Error("list assets failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list assets"})
		return
	}
	if assets == nil {
		assets = []domain.DerivedAsset{}
	}
	c.JSON(http.StatusOK, gin.H{"token": c.Param("token"), "assets": assets})
}

func (s *Server) handleCreateIconSet(c *gin.Context) {
	if s.queue == nil || s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "asynchronous icon sets are disabled"})
		return
	}

	webhookURL := strings.TrimSpace(c.PostForm("webhook_url"))
	if webhookURL != "" && !validWebhookURL(webhookURL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "webhook_url must be an absolute http(s) URL"})
		return
	}

	jobID := id.New()
	upload, err := s.stageUpload(c, jobID)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": flashMessage(err)})
		return
	}

	now := time.Now().UTC()
	job := domain.Job{
		ID:         jobID,
		Status:     domain.JobStatusQueued,
		SourceKey:  upload.Key,
		WebhookURL: webhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	log := s.logger.WithFields(logrus.Fields{"job_id": jobID, "source_key": upload.Key})

	if err := s.jobs.Create(c.Request.Context(), job); err != nil {
		log.WithError(err).Error("create job failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	info, err := s.queue.EnqueueIconSet(c.Request.Context(), queue.IconSetPayload{
		JobID:       jobID,
		SourceKey:   upload.Key,
		WebhookURL:  webhookURL,
		RequestedAt: now,
	})
	if err != nil {
		log.WithError(err).Error("enqueue failed")
		if _, uerr := s.jobs.Update(c.Request.Context(), jobID, domain.JobUpdate{
			Status: domain.JobStatusFailed,
			Error:  "enqueue failed",
		}); uerr != nil {
			log.WithError(uerr).Error("mark job failed")
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue job"})
		return
	}
	s.metrics.queueEnqueued.WithLabelValues(info.Queue).Inc()

	if err := s.publisher.Publish(c.Request.Context(), events.Event{
		Type:       events.TypeIconSetQueued,
		JobID:      jobID,
		Token:      jobID,
		OccurredAt: now,
	}); err != nil {
		log.WithError(err).Warn("job event not published")
	}

	log.WithField("queue", info.Queue).Info("icon set queued")
	c.JSON(http.StatusAccepted, jobView(job))
}

func (s *Server) handleGetIconSet(c *gin.Context) {
	if s.jobs == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "asynchronous icon sets are disabled"})
		return
	}

	jobID := c.Param("id")
	if !id.Valid(jobID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	job, ok, err := s.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		s.logger.WithField("job_id", jobID).WithError(err).Error("fetch job failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}
	c.JSON(http.StatusOK, jobView(job))
}

func jobView(job domain.Job) jobResponse {
	resp := jobResponse{Job: job, StatusURL: "/v1/icon-sets/" + job.ID}
	if job.Status == domain.JobStatusSucceeded && job.ArchiveKey != "" {
		resp.DownloadURL = "/download_assets/" + job.ID + "/" + domain.IconSetArchiveName
	}
	return resp
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNoFile), errors.Is(err, domain.ErrInvalidSpec):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
