package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type StepResultMetric struct {
	Collector *prometheus.CounterVec
	logger    *zap.SugaredLogger
}

func NewStepResultMetric(logger *zap.SugaredLogger) *StepResultMetric {
	return &StepResultMetric{
		Collector: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: prometheusNamespace,
			Name:      "step_results_total",
			Help:      "Results of deployment and cleanup steps",
		}, []string{"sequence", "step", "result"}),
		logger: logger,
	}
}

func (m *StepResultMetric) Inc(sequence, step, result string) {
	counter, err := m.Collector.GetMetricWithLabelValues(sequence, step, result)
	if err != nil {
		m.logger.Errorf("StepResultMetric: unable to retrieve metric with labels=%s/%s/%s: %s", sequence, step, result, err)
		return
	}
	counter.Inc()
}
