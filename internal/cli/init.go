package cli

import (
	"strings"

	"github.com/kyma-incubator/rag-deployer/pkg/config"
	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	defaultEnvFile = ".env"
	configEnvVar   = "RAG_DEPLOYER_CONFIG"
)

func NewRootCommand(o *Options, name, shortDesc, longDesc string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: shortDesc,
		Long:  longDesc,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			//validate given user input
			if err := o.Validate(); err != nil {
				return err
			}
			return initViper(o)
		},
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.PersistentFlags().StringVarP(&o.ConfigFile, "config", "c", "", "Path to an optional YAML configuration file (environment variables take precedence)")
	cmd.PersistentFlags().StringVar(&o.EnvFile, "env-file", defaultEnvFile, "Path to a file with KEY=VALUE pairs exported for unset environment variables")
	cmd.PersistentFlags().BoolVarP(&o.Verbose, "verbose", "v", false, "Show detailed information about the executed command actions")
	cmd.PersistentFlags().StringVarP(&o.OutputFormat, "output", "o", SupportedOutputFormats[0], "Output format of the summary ('"+strings.Join(SupportedOutputFormats, "', '")+"')")
	cmd.PersistentFlags().StringVar(&o.LogFile, "log-file", "", "Write a JSON log of the run into this file")
	cmd.PersistentFlags().StringVar(&o.PushgatewayURL, "pushgateway", "", "Push run metrics to this Prometheus Pushgateway")
	cmd.PersistentFlags().BoolP("help", "h", false, "Command help")
	return cmd
}

func initViper(o *Options) error {
	exported, err := config.LoadDotEnv(o.EnvFile)
	if err != nil {
		return err
	}
	if len(exported) > 0 {
		o.Logger().Debugf("Exported %d variables from env file '%s'", len(exported), o.EnvFile)
	}

	//read configuration from ENV vars
	viper.AutomaticEnv()

	//read configuration from config file
	cfgFile := getConfigFile(o)
	if cfgFile == "" {
		return nil
	}
	if !file.Exists(cfgFile) {
		return errors.Errorf("configuration file '%s' not found", cfgFile)
	}
	viper.SetConfigFile(cfgFile)
	if err := viper.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read configuration file '%s'", cfgFile)
	}
	o.Logger().Debugf("Using configuration file '%s'", viper.ConfigFileUsed())
	return nil
}

func getConfigFile(o *Options) string {
	if configFile := strings.TrimSpace(o.ConfigFile); configFile != "" {
		return configFile
	}
	return strings.TrimSpace(viper.GetString(configEnvVar))
}
