package azure

import (
	"context"
	"strings"

	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const azBinary = "az"

type Account struct {
	SubscriptionID string
	TenantID       string
}

// CLI wraps the Azure CLI commands required to access the subscription, the AKS cluster and the registry.
type CLI struct {
	runner executor.Runner
	logger *zap.SugaredLogger
}

func NewCLI(runner executor.Runner, logger *zap.SugaredLogger) *CLI {
	return &CLI{
		runner: runner,
		logger: logger,
	}
}

// Login authenticates with the service principal if its credentials are configured.
// Otherwise an existing CLI session is required. The configured subscription gets selected afterwards.
func (c *CLI) Login(ctx context.Context, cfg *config.Config) (*Account, error) {
	if cfg.HasServicePrincipal() {
		c.logger.Infof("Authenticating with service principal '%s'", cfg.ClientID)
		cmd := executor.NewCommand(azBinary, "login", "--service-principal",
			"--username", cfg.ClientID,
			"--password", cfg.ClientSecret,
			"--tenant", cfg.TenantID,
			"--output", "none")
		cmd.Secrets = []string{cfg.ClientSecret}
		if _, err := c.runner.Run(ctx, cmd); err != nil {
			return nil, errors.Wrap(err, "service principal login failed")
		}
	} else {
		c.logger.Debug("No service principal configured: using existing Azure CLI session")
	}

	if cfg.SubscriptionID != "" {
		if _, err := c.run(ctx, "account", "set", "--subscription", cfg.SubscriptionID); err != nil {
			return nil, errors.Wrapf(err, "failed to select subscription '%s'", cfg.SubscriptionID)
		}
	}

	account, err := c.Account(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "no active Azure session: run 'az login' or configure a service principal")
	}
	c.logger.Infof("Using Azure subscription '%s' (tenant '%s')", account.SubscriptionID, account.TenantID)
	return account, nil
}

// Account returns the subscription and tenant of the active CLI session.
func (c *CLI) Account(ctx context.Context) (*Account, error) {
	result, err := c.run(ctx, "account", "show", "--query", "[id, tenantId]", "--output", "tsv")
	if err != nil {
		return nil, err
	}
	var values []string
	for _, line := range result.Stdout {
		if line = strings.TrimSpace(line); line != "" {
			values = append(values, line)
		}
	}
	if len(values) != 2 {
		return nil, errors.Errorf("unexpected output of 'az account show': %s", result.Output())
	}
	return &Account{
		SubscriptionID: values[0],
		TenantID:       values[1],
	}, nil
}

// GetCredentials writes the user credentials of the AKS cluster into the kubeconfig file.
func (c *CLI) GetCredentials(ctx context.Context, resourceGroup, cluster, kubeconfigPath string) error {
	_, err := c.run(ctx, "aks", "get-credentials",
		"--resource-group", resourceGroup,
		"--name", cluster,
		"--file", kubeconfigPath,
		"--overwrite-existing")
	return errors.Wrapf(err, "failed to retrieve credentials of AKS cluster '%s'", cluster)
}

func (c *CLI) AcrLogin(ctx context.Context, registry string) error {
	_, err := c.run(ctx, "acr", "login", "--name", registry)
	return errors.Wrapf(err, "failed to log in to container registry '%s'", registry)
}

func (c *CLI) run(ctx context.Context, args ...string) (*executor.Result, error) {
	return c.runner.Run(ctx, executor.NewCommand(azBinary, args...))
}
