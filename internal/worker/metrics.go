package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry        *prometheus.Registry
	jobsTotal       *prometheus.CounterVec
	jobDuration     *prometheus.HistogramVec
	activeJobs      prometheus.Gauge
	archiveBytes    prometheus.Counter
	webhookFailures prometheus.Counter
}

func newMetrics(registry *prometheus.Registry) *metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconforge_worker_jobs_total",
			Help: "Icon-set jobs by final status.",
		}, []string{"status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iconforge_worker_job_duration_seconds",
			Help:    "Processing duration for each icon-set job attempt.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iconforge_worker_active_jobs",
			Help: "Icon-set jobs currently holding a processing slot.",
		}),
		archiveBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconforge_worker_archive_bytes_total",
			Help: "Bytes of icon-set archives written by the worker.",
		}),
		webhookFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iconforge_worker_webhook_failures_total",
			Help: "Webhook deliveries that exhausted their attempts.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.archiveBytes,
		m.webhookFailures,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
