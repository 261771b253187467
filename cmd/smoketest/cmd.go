package cmd

import (
	"context"
	"os"

	"github.com/kyma-incubator/rag-deployer/internal/cli"
	"github.com/kyma-incubator/rag-deployer/pkg/deploy"
	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"github.com/kyma-incubator/rag-deployer/pkg/smoketest"
	"github.com/spf13/cobra"
)

type Options struct {
	*cli.Options
	URL    string
	File   string
	Query  string
	Probes []string
}

func NewOptions(o *cli.Options) *Options {
	return &Options{o,
		"",  //URL
		"",  //File
		"",  //Query
		nil, //Probes
	}
}

func NewCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "smoke-test",
		Short: "Verify a running RAG application",
		Long: "Sends a health check, a document upload and a query to the RAG application. Without --url the " +
			"application service is port-forwarded from the cluster. The upload is skipped if the test file does not exist.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), o)
		},
	}
	cmd.Flags().StringVar(&o.URL, "url", "", "Base URL of the application (default: port-forward to the application service)")
	cmd.Flags().StringVar(&o.File, "file", "", "Document uploaded by the upload probe (default: SMOKE_TEST_FILE or 'test.pdf')")
	cmd.Flags().StringVar(&o.Query, "query", "", "Question sent by the query probe (default: SMOKE_TEST_QUERY)")
	cmd.Flags().StringSliceVar(&o.Probes, "probe", nil, "Probes to run (health, upload, query; default: all)")
	return cmd
}

func Run(ctx context.Context, o *Options) error {
	cfg, err := o.Config()
	if err != nil {
		return err
	}
	if o.File != "" {
		cfg.SmokeTestFile = o.File
	}
	if o.Query != "" {
		cfg.SmokeTestQuery = o.Query
	}

	logger := o.Logger()
	collector := metrics.NewCollector(logger)
	var report *smoketest.Report
	test := func(baseURL string) error {
		runner, err := smoketest.NewRunner(smoketest.Config{
			BaseURL: baseURL,
			File:    cfg.SmokeTestFile,
			Query:   cfg.SmokeTestQuery,
			Timeout: cfg.SmokeTestTimeout,
			Probes:  o.Probes,
		}, logger)
		if err != nil {
			return err
		}
		report = runner.Run(ctx)
		return nil
	}

	if o.URL != "" {
		err = test(o.URL)
	} else {
		forward := &deploy.PortForward{
			Runner:     o.Runner(cfg),
			Kubeconfig: cfg.KubeconfigPath(),
			Namespace:  cfg.Namespace,
			Service:    cfg.ServiceName,
			LocalPort:  cfg.LocalPort,
			RemotePort: cfg.ServicePort,
			Logger:     logger,
		}
		err = forward.Do(ctx, test)
	}
	if err != nil {
		return err
	}

	for _, result := range report.Results {
		collector.ProbeStatus.Set(result.Name, string(result.Status))
	}
	if err := cli.PrintProbes(os.Stdout, o.OutputFormat, report); err != nil {
		logger.Warnf("Failed to print smoke test summary: %s", err)
	}
	o.PushMetrics(cfg, collector)
	return report.Error()
}
