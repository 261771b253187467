package deploy

import (
	"context"
	"errors"
	"testing"

	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSequence(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	newSteps := func(executed *[]string, failing string, err error) []Step {
		var steps []Step
		for _, name := range []string{"first", "second", "third"} {
			name := name
			steps = append(steps, Step{Name: name, Run: func(ctx context.Context) error {
				*executed = append(*executed, name)
				if name == failing {
					return err
				}
				return nil
			}})
		}
		return steps
	}

	t.Run("All steps run in order", func(t *testing.T) {
		var executed []string
		collector := metrics.NewCollector(logger)
		seq := &Sequence{Name: "test", Steps: newSteps(&executed, "", nil), Logger: logger, Metrics: collector}
		results, err := seq.Run(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{"first", "second", "third"}, executed)
		require.Len(t, results, 3)
		for _, result := range results {
			require.Equal(t, StepSucceeded, result.Status)
		}
		require.Equal(t, float64(1), testutil.ToFloat64(collector.StepResult.Collector.WithLabelValues("test", "second", "succeeded")))
	})

	t.Run("First failure stops the sequence", func(t *testing.T) {
		var executed []string
		cause := &executor.ExitError{Command: "terraform apply", Code: 3}
		seq := &Sequence{Name: "test", Steps: newSteps(&executed, "second", cause), Logger: logger}
		results, err := seq.Run(context.Background())
		require.Error(t, err)
		require.Equal(t, []string{"first", "second"}, executed)
		require.Equal(t, []StepStatus{StepSucceeded, StepFailed, StepSkipped}, []StepStatus{
			results[0].Status, results[1].Status, results[2].Status,
		})

		var stepErr *StepError
		require.True(t, errors.As(err, &stepErr))
		require.Equal(t, "second", stepErr.Step)
		require.Equal(t, 3, executor.ExitCode(err))
		require.Equal(t, "second: failed (command 'terraform apply' failed with exit code 3)", results[1].String())
	})

	t.Run("Closed context stops before the next step", func(t *testing.T) {
		var executed []string
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		seq := &Sequence{Name: "test", Steps: newSteps(&executed, "", nil), Logger: logger}
		_, err := seq.Run(ctx)
		require.Error(t, err)
		require.Empty(t, executed)
		require.Equal(t, 1, executor.ExitCode(err))
	})
}
