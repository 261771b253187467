package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	probePassed  = 1
	probeFailed  = 0
	probeSkipped = -1
)

// ProbeStatusMetric exposes the outcome of each smoke test probe (1=passed, 0=failed, -1=skipped).
type ProbeStatusMetric struct {
	Collector *prometheus.GaugeVec
	logger    *zap.SugaredLogger
}

func NewProbeStatusMetric(logger *zap.SugaredLogger) *ProbeStatusMetric {
	return &ProbeStatusMetric{
		Collector: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: prometheusNamespace,
			Name:      "smoke_test_probe_status",
			Help:      "Outcome of smoke test probes (1=passed, 0=failed, -1=skipped)",
		}, []string{"probe"}),
		logger: logger,
	}
}

func (m *ProbeStatusMetric) Set(probe, status string) {
	gauge, err := m.Collector.GetMetricWithLabelValues(probe)
	if err != nil {
		m.logger.Errorf("ProbeStatusMetric: unable to retrieve metric with label=%s: %s", probe, err)
		return
	}
	switch status {
	case "passed":
		gauge.Set(probePassed)
	case "skipped":
		gauge.Set(probeSkipped)
	default:
		gauge.Set(probeFailed)
	}
}
