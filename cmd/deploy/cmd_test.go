package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/kyma-incubator/rag-deployer/internal/cli"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/deploy"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/kyma-incubator/rag-deployer/pkg/preflight"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type toolsAvailable struct{}

func (toolsAvailable) Run(context.Context) (*preflight.Report, error) {
	return &preflight.Report{}, nil
}

func TestRun(t *testing.T) {
	runner := &executor.MockRunner{Handler: func(cmd executor.Command) (*executor.Result, error) {
		return nil, &executor.ExitError{Command: cmd.String(), Code: 5}
	}}
	stdout := &bytes.Buffer{}

	o := NewOptions(&cli.Options{OutputFormat: "json", RunID: "test"})
	o.ImageTag = "1.0.0"
	o.stdout = stdout
	o.dependencies = func(cfg *config.Config) *deploy.Dependencies {
		cfg.WorkDir = t.TempDir()
		deps := deploy.NewDependencies(cfg, runner, zaptest.NewLogger(t).Sugar())
		deps.Preflight = toolsAvailable{}
		return deps
	}

	err := Run(context.Background(), o)
	require.Error(t, err)
	require.Equal(t, 5, executor.ExitCode(err))

	// summary is printed although the deployment failed
	var rows []map[string]string
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &rows))
	require.Len(t, rows, 9)
	require.Equal(t, deploy.StepPreflight, rows[0]["step"])
	require.Equal(t, string(deploy.StepSucceeded), rows[0]["status"])
	require.Equal(t, deploy.StepAuthenticate, rows[1]["step"])
	require.Equal(t, string(deploy.StepFailed), rows[1]["status"])
	require.NotEmpty(t, rows[1]["error"])
	for _, row := range rows[2:] {
		require.Equal(t, string(deploy.StepSkipped), row["status"])
		require.Equal(t, "-", row["duration"])
	}
	require.Len(t, runner.Commands(), 1)
}
