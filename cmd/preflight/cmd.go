package cmd

import (
	"context"
	"os"

	"github.com/kyma-incubator/rag-deployer/internal/cli"
	"github.com/kyma-incubator/rag-deployer/pkg/preflight"
	"github.com/spf13/cobra"
)

type Options struct {
	*cli.Options
}

func NewOptions(o *cli.Options) *Options {
	return &Options{o}
}

func NewCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Verify that all required command line tools are installed",
		Long:  "Checks that az, terraform, kubectl and docker are available in the PATH and meet the minimum versions",
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
	report, err := preflight.NewChecker(o.Runner(cfg), o.Logger()).Run(ctx)
	if err != nil {
		return err
	}

	of, err := cli.NewOutputFormatter(o.OutputFormat)
	if err != nil {
		return err
	}
	if err := of.Header("Tool", "Status", "Version", "Minimum", "Message"); err != nil {
		return err
	}
	for _, check := range report.Checks {
		if err := of.AddRow(check.Tool, string(check.Status), check.Version, check.MinVersion, check.Message); err != nil {
			return err
		}
	}
	if err := of.Output(os.Stdout); err != nil {
		return err
	}
	return report.Error()
}
