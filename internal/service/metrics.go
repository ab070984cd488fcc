package service

import (
	"errors"

	"github.com/dunamismax/iconforge/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	outputBytesTotal  *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		operationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconforge_transform_operations_total",
			Help: "Transform operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		operationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iconforge_transform_duration_seconds",
			Help:    "Wall time of a transform operation including storage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"operation"}),
		outputBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "iconforge_transform_output_bytes_total",
			Help: "Bytes written for derived assets.",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.operationsTotal, m.operationDuration, m.outputBytesTotal)
	}
	return m
}

// outcome maps an operation error onto a bounded label value.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNoFile):
		return "no_file"
	case errors.Is(err, domain.ErrImageTooLarge):
		return "too_large"
	case errors.Is(err, domain.ErrUnknownFilter), errors.Is(err, domain.ErrInvalidSpec):
		return "invalid"
	case errors.Is(err, domain.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrAssetNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConversion):
		return "conversion_error"
	default:
		return "error"
	}
}
