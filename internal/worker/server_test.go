package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/dunamismax/iconforge/internal/events"
	"github.com/dunamismax/iconforge/internal/logging"
	"github.com/dunamismax/iconforge/internal/queue"
	"github.com/dunamismax/iconforge/internal/store"
	"github.com/dunamismax/iconforge/internal/webhook"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

type fakeRunner struct {
	asset domain.DerivedAsset
	err   error
	calls int
}

func (r *fakeRunner) IconSet(_ context.Context, token, sourceKey string) (domain.DerivedAsset, error) {
	r.calls++
	if r.err != nil {
		return domain.DerivedAsset{}, r.err
	}
	asset := r.asset
	asset.Token = token
	return asset, nil
}

type captureSender struct {
	events []string
	bodies []webhook.IconSetNotification
	err    error
}

func (c *captureSender) Send(_ context.Context, _ string, event string, payload any) error {
	c.events = append(c.events, event)
	if body, ok := payload.(webhook.IconSetNotification); ok {
		c.bodies = append(c.bodies, body)
	}
	return c.err
}

type capturePublisher struct {
	events []events.Event
}

func (p *capturePublisher) Publish(_ context.Context, event events.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func newTestServer(t *testing.T, runner IconSetRunner, sender webhookSender) (*Server, *store.MemoryStore, *capturePublisher) {
	t.Helper()

	jobs := store.NewMemoryStore()
	publisher := &capturePublisher{}
	return &Server{
		logger:        logging.Discard(),
		sem:           make(chan struct{}, 1),
		studio:        runner,
		webhookClient: sender,
		jobStore:      jobs,
		publisher:     publisher,
		metrics:       newMetrics(nil),
		tracer:        otel.Tracer("test"),
	}, jobs, publisher
}

func seedJob(t *testing.T, jobs store.JobStore, id string) queue.IconSetPayload {
	t.Helper()

	now := time.Now().UTC()
	payload := queue.IconSetPayload{
		JobID:       id,
		SourceKey:   "uploads/" + id + "/logo.png",
		WebhookURL:  "https://hooks.example.test/iconforge",
		RequestedAt: now,
	}
	require.NoError(t, jobs.Create(context.Background(), domain.Job{
		ID:         id,
		Status:     domain.JobStatusQueued,
		SourceKey:  payload.SourceKey,
		WebhookURL: payload.WebhookURL,
		CreatedAt:  now,
		UpdatedAt:  now,
	}))
	return payload
}

func task(t *testing.T, payload queue.IconSetPayload) *asynq.Task {
	t.Helper()

	tk, err := queue.NewIconSetTask(payload)
	require.NoError(t, err)
	return tk
}

func TestHandleIconSetSuccess(t *testing.T) {
	runner := &fakeRunner{asset: domain.DerivedAsset{Key: "output/job-1/ios_app_icons.zip", Bytes: 2048}}
	sender := &captureSender{}
	s, jobs, publisher := newTestServer(t, runner, sender)
	payload := seedJob(t, jobs, "job-1")

	require.NoError(t, s.handleIconSet(context.Background(), task(t, payload)))

	job, ok, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, "output/job-1/ios_app_icons.zip", job.ArchiveKey)

	assert.Equal(t, []string{webhook.EventIconSetCompleted}, sender.events)
	assert.Equal(t, 15, sender.bodies[0].Icons)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, events.TypeIconSetDone, publisher.events[0].Type)
	assert.Equal(t, 2048.0, testutil.ToFloat64(s.metrics.archiveBytes))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.jobsTotal.WithLabelValues(domain.JobStatusSucceeded)))
}

func TestHandleIconSetDecodeFailureSkipsRetry(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("%w: bad header", domain.ErrConversion)}
	sender := &captureSender{}
	s, jobs, publisher := newTestServer(t, runner, sender)
	payload := seedJob(t, jobs, "job-2")

	err := s.handleIconSet(context.Background(), task(t, payload))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	job, _, _ := jobs.Get(context.Background(), "job-2")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "bad header")
	assert.Equal(t, []string{webhook.EventIconSetFailed}, sender.events)
	assert.Equal(t, events.TypeIconSetFailed, publisher.events[0].Type)
}

func TestHandleIconSetWebhookFailureDoesNotFailJob(t *testing.T) {
	runner := &fakeRunner{asset: domain.DerivedAsset{Key: "output/job-3/ios_app_icons.zip"}}
	sender := &captureSender{err: errors.New("receiver down")}
	s, jobs, _ := newTestServer(t, runner, sender)
	payload := seedJob(t, jobs, "job-3")

	require.NoError(t, s.handleIconSet(context.Background(), task(t, payload)))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.webhookFailures))
}

func TestHandleIconSetRejectsMalformedPayload(t *testing.T) {
	s, _, _ := newTestServer(t, &fakeRunner{}, nil)

	err := s.handleIconSet(context.Background(), asynq.NewTask(queue.TypeGenerateIconSet, []byte("nope")))
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestHandleIconSetSkipsFinishedJob(t *testing.T) {
	runner := &fakeRunner{asset: domain.DerivedAsset{Key: "output/job-4/ios_app_icons.zip"}}
	sender := &captureSender{}
	s, jobs, publisher := newTestServer(t, runner, sender)
	payload := seedJob(t, jobs, "job-4")

	_, err := jobs.Update(context.Background(), "job-4", domain.JobUpdate{
		Status:     domain.JobStatusSucceeded,
		ArchiveKey: "output/job-4/ios_app_icons.zip",
	})
	require.NoError(t, err)

	require.NoError(t, s.handleIconSet(context.Background(), task(t, payload)))
	assert.Zero(t, runner.calls)
	assert.Empty(t, sender.events)
	assert.Empty(t, publisher.events)
	assert.Equal(t, 1.0, testutil.ToFloat64(s.metrics.jobsTotal.WithLabelValues("duplicate")))
}

func TestPermanentFailure(t *testing.T) {
	assert.True(t, permanentFailure(domain.ErrImageTooLarge))
	assert.True(t, permanentFailure(fmt.Errorf("wrap: %w", domain.ErrAssetNotFound)))
	assert.False(t, permanentFailure(errors.New("minio: connection reset")))
}
