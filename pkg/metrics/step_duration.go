package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type StepDurationMetric struct {
	Collector *prometheus.HistogramVec
	logger    *zap.SugaredLogger
}

func NewStepDurationMetric(logger *zap.SugaredLogger) *StepDurationMetric {
	return &StepDurationMetric{
		Collector: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: prometheusNamespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of deployment and cleanup steps",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"sequence", "step"}),
		logger: logger,
	}
}

func (m *StepDurationMetric) Observe(sequence, step string, duration time.Duration) {
	observer, err := m.Collector.GetMetricWithLabelValues(sequence, step)
	if err != nil {
		m.logger.Errorf("StepDurationMetric: unable to retrieve metric with labels=%s/%s: %s", sequence, step, err)
		return
	}
	observer.Observe(duration.Seconds())
}
