package cmd

import (
	"context"
	"io"
	"os"

	"github.com/kyma-incubator/rag-deployer/internal/cli"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/deploy"
	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"github.com/spf13/cobra"
)

type Options struct {
	*cli.Options
	ImageTag string

	stdout       io.Writer
	dependencies func(cfg *config.Config) *deploy.Dependencies
}

func NewOptions(o *cli.Options) *Options {
	return &Options{
		Options: o,
		stdout:  os.Stdout,
		dependencies: func(cfg *config.Config) *deploy.Dependencies {
			return deploy.NewDependencies(cfg, o.Runner(cfg), o.Logger())
		},
	}
}

func NewCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Provision the infrastructure and deploy the RAG application",
		Long: "Runs preflight checks, authenticates against Azure, provisions the infrastructure with Terraform, " +
			"builds and pushes the application image, installs the cluster add-ons, applies the Kubernetes manifests, " +
			"waits for readiness and verifies the health endpoint. The first failing step aborts the deployment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVar(&o.ImageTag, "image-tag", "", "Tag of the application image (default: short git commit or content hash)")
	return cmd
}

func Run(ctx context.Context, o *Options) error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}
	if o.ImageTag != "" {
		cfg.ImageTag = o.ImageTag
	}

	logger := o.Logger()
	logger.Infof("Deploying project '%s' (environment '%s') to region '%s'", cfg.ProjectName, cfg.Environment, cfg.Region)

	collector := metrics.NewCollector(logger)
	deployer := deploy.NewDeployer(cfg, o.dependencies(cfg), o.RunID, logger, collector)
	results, runErr := deployer.Run(ctx)

	if err := cli.PrintSteps(o.stdout, o.OutputFormat, results); err != nil {
		logger.Warnf("Failed to print deployment summary: %s", err)
	}
	if report := deployer.SmokeReport(); report != nil {
		if err := cli.PrintProbes(o.stdout, o.OutputFormat, report); err != nil {
			logger.Warnf("Failed to print smoke test summary: %s", err)
		}
	}
	o.PushMetrics(cfg, collector)

	if runErr != nil {
		return runErr
	}
	logger.Infof("Deployment finished: image '%s' is running in namespace '%s'", deployer.Image(), cfg.Namespace)
	return nil
}
