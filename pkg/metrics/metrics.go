package metrics

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"
)

const (
	prometheusNamespace = "rag_deployer"
	pushJobName         = "rag_deployer"
	runIDLabel          = "run_id"
)

// Collector bundles the metrics of a single run in its own registry.
type Collector struct {
	Registry     *prometheus.Registry
	StepDuration *StepDurationMetric
	StepResult   *StepResultMetric
	ProbeStatus  *ProbeStatusMetric
	logger       *zap.SugaredLogger
}

func NewCollector(logger *zap.SugaredLogger) *Collector {
	c := &Collector{
		Registry:     prometheus.NewRegistry(),
		StepDuration: NewStepDurationMetric(logger),
		StepResult:   NewStepResultMetric(logger),
		ProbeStatus:  NewProbeStatusMetric(logger),
		logger:       logger,
	}
	c.Registry.MustRegister(c.StepDuration.Collector, c.StepResult.Collector, c.ProbeStatus.Collector)
	return c
}

// Push sends all metrics of the run to a Prometheus Pushgateway. Nothing happens if no URL is configured.
func (c *Collector) Push(gatewayURL, runID string) error {
	if gatewayURL == "" {
		return nil
	}
	pusher := push.New(gatewayURL, pushJobName).Gatherer(c.Registry)
	if runID != "" {
		pusher = pusher.Grouping(runIDLabel, runID)
	}
	if err := pusher.Push(); err != nil {
		return errors.Wrapf(err, "failed to push metrics to '%s'", gatewayURL)
	}
	c.logger.Debugf("Pushed metrics of run '%s' to '%s'", runID, gatewayURL)
	return nil
}
