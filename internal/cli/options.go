package cli

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/kyma-incubator/rag-deployer/pkg/logger"
	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var loggerMutex sync.Mutex

// Options are shared by all sub-commands.
type Options struct {
	Verbose        bool
	OutputFormat   string
	ConfigFile     string
	EnvFile        string
	LogFile        string
	PushgatewayURL string
	RunID          string
	logger         *zap.SugaredLogger
}

func (o *Options) String() string {
	return fmt.Sprintf("CLI options: verbose=%t output=%s config=%s env-file=%s log-file=%s run-id=%s",
		o.Verbose, o.OutputFormat, o.ConfigFile, o.EnvFile, o.LogFile, o.RunID)
}

func (o *Options) Logger() *zap.SugaredLogger {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()
	if o.logger == nil {
		o.logger = logger.NewLoggerWithFile(o.Verbose, o.LogFile)
		if o.RunID != "" {
			o.logger = o.logger.With("runID", o.RunID)
		}
	}
	return o.logger
}

// Config resolves the deployment settings from configuration file, environment and defaults.
func (o *Options) Config() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if o.PushgatewayURL != "" {
		cfg.PushgatewayURL = o.PushgatewayURL
	}
	return cfg, nil
}

func (o *Options) Runner(cfg *config.Config) executor.Runner {
	return executor.NewCmdRunner(o.Logger(), cfg.CommandAttempts)
}

// PushMetrics sends the collected metrics to the Pushgateway if one is configured.
// Failures are logged but never change the outcome of a run.
func (o *Options) PushMetrics(cfg *config.Config, collector *metrics.Collector) {
	if cfg.PushgatewayURL == "" || collector == nil {
		return
	}
	if err := collector.Push(cfg.PushgatewayURL, o.RunID); err != nil {
		o.Logger().Warnf("Failed to push metrics to '%s': %s", cfg.PushgatewayURL, err)
	}
}

func (o *Options) Validate() error {
	if err := validateOutputFormat(o.OutputFormat); err != nil {
		return err
	}
	if o.RunID == "" {
		o.RunID = uuid.NewString()
	}
	return nil
}
