package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/kyma-incubator/rag-deployer/internal/cli"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/deploy"
	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

type Options struct {
	*cli.Options

	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	dependencies func(cfg *config.Config) *deploy.Dependencies
}

func NewOptions(o *cli.Options) *Options {
	return &Options{
		Options: o,
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		dependencies: func(cfg *config.Config) *deploy.Dependencies {
			return deploy.NewDependencies(cfg, o.Runner(cfg), o.Logger())
		},
	}
}

func NewCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete the application namespace and destroy the infrastructure",
		Long: "Asks for confirmation and deletes the Kubernetes namespace of the application before all " +
			"Azure resources are destroyed with Terraform. Only the answer 'yes' continues, the deletion cannot be undone.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), o)
		},
	}
}

func Run(ctx context.Context, o *Options) error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}

	logger := o.Logger()
	collector := metrics.NewCollector(logger)
	cleaner := deploy.NewCleaner(cfg, o.dependencies(cfg), logger, collector, o.stdin, o.stderr)
	results, runErr := cleaner.Run(ctx)
	if errors.Is(runErr, deploy.ErrAborted) {
		_, _ = fmt.Fprintln(o.stdout, "Cleanup cancelled")
		return nil
	}

	if err := cli.PrintSteps(o.stdout, o.OutputFormat, results); err != nil {
		logger.Warnf("Failed to print cleanup summary: %s", err)
	}
	o.PushMetrics(cfg, collector)

	if runErr != nil {
		return runErr
	}
	logger.Infof("Cleanup of '%s' finished", cfg.StackName())
	return nil
}
