package preflight

import (
	"context"
	"testing"

	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/kyma-incubator/rag-deployer/pkg/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCheckerWithInstalledTools(t *testing.T) {
	test.IntegrationTest(t)

	logger := zaptest.NewLogger(t).Sugar()
	report, err := NewChecker(executor.NewCmdRunner(logger, 1), logger).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Checks, len(DefaultTools))
	for _, check := range report.Checks {
		t.Logf("%s: %s %s (%s)", check.Tool, check.Status, check.Version, check.Message)
		if check.Status == StatusOK {
			require.NotEmpty(t, check.Version)
		}
	}
}
