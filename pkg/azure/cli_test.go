package azure

import (
	"context"
	"strings"
	"testing"

	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func accountRunner(fail string) *executor.MockRunner {
	return &executor.MockRunner{Handler: func(cmd executor.Command) (*executor.Result, error) {
		if fail != "" && strings.HasPrefix(cmd.String(), fail) {
			return nil, &executor.ExitError{Command: cmd.String(), Code: 1}
		}
		if strings.HasPrefix(cmd.String(), "az account show") {
			return &executor.Result{Stdout: []string{"sub-123", "tenant-456", ""}}, nil
		}
		return &executor.Result{}, nil
	}}
}

func TestLogin(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	t.Run("Existing session", func(t *testing.T) {
		runner := accountRunner("")
		account, err := NewCLI(runner, logger).Login(context.Background(), &config.Config{})
		require.NoError(t, err)
		require.Equal(t, &Account{SubscriptionID: "sub-123", TenantID: "tenant-456"}, account)
		require.Equal(t, []string{"az account show --query [id, tenantId] --output tsv"}, runner.CommandLines())
	})

	t.Run("Service principal and subscription", func(t *testing.T) {
		runner := accountRunner("")
		cfg := &config.Config{
			ClientID:       "client",
			ClientSecret:   "s3cr3t",
			TenantID:       "tenant-456",
			SubscriptionID: "sub-123",
		}
		_, err := NewCLI(runner, logger).Login(context.Background(), cfg)
		require.NoError(t, err)

		lines := runner.CommandLines()
		require.Len(t, lines, 3)
		require.Equal(t, "az login --service-principal --username client --password *** --tenant tenant-456 --output none", lines[0])
		require.Equal(t, "az account set --subscription sub-123", lines[1])
		args := runner.Commands()[0].Args
		require.Equal(t, "--password", args[4])
		require.Equal(t, "s3cr3t", args[5])
	})

	t.Run("No session", func(t *testing.T) {
		runner := accountRunner("az account show")
		_, err := NewCLI(runner, logger).Login(context.Background(), &config.Config{})
		require.Error(t, err)
		require.Equal(t, 1, executor.ExitCode(err))
	})

	t.Run("Failing login propagates exit code", func(t *testing.T) {
		runner := &executor.MockRunner{Handler: func(cmd executor.Command) (*executor.Result, error) {
			return nil, &executor.ExitError{Command: cmd.String(), Code: 2}
		}}
		cfg := &config.Config{ClientID: "client", ClientSecret: "s3cr3t", TenantID: "tenant"}
		_, err := NewCLI(runner, logger).Login(context.Background(), cfg)
		require.Error(t, err)
		require.Equal(t, 2, executor.ExitCode(err))
		require.Len(t, runner.Commands(), 1)
	})
}

func TestClusterAndRegistryAccess(t *testing.T) {
	runner := accountRunner("")
	cli := NewCLI(runner, zaptest.NewLogger(t).Sugar())

	require.NoError(t, cli.GetCredentials(context.Background(), "rg-ragapp-dev", "aks-ragapp-dev", "/tmp/kubeconfig"))
	require.NoError(t, cli.AcrLogin(context.Background(), "acrragappdev"))
	require.Equal(t, []string{
		"az aks get-credentials --resource-group rg-ragapp-dev --name aks-ragapp-dev --file /tmp/kubeconfig --overwrite-existing",
		"az acr login --name acrragappdev",
	}, runner.CommandLines())

	failing := NewCLI(accountRunner("az acr login"), zaptest.NewLogger(t).Sugar())
	require.Error(t, failing.AcrLogin(context.Background(), "acrragappdev"))
}
