package executor

import (
	"context"
	"testing"
	"time"

	e "github.com/kyma-incubator/rag-deployer/pkg/error"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCmdRunner(t *testing.T) {
	runner := NewCmdRunner(zaptest.NewLogger(t).Sugar(), 1)

	t.Run("Error when no command passed", func(t *testing.T) {
		_, err := runner.Run(context.Background(), Command{})
		assert.Error(t, err)
	})

	t.Run("Successful echo command", func(t *testing.T) {
		result, err := runner.Run(context.Background(), NewCommand("echo", "Hello", "Go"))
		require.NoError(t, err)
		require.Equal(t, "Hello Go", result.Output())
		require.Equal(t, 0, result.Exit)
	})

	t.Run("Working directory and environment are applied", func(t *testing.T) {
		dir := t.TempDir()
		result, err := runner.Run(context.Background(), Command{
			Name: "sh",
			Args: []string{"-c", "pwd; echo $RAG_TEST_VALUE"},
			Dir:  dir,
			Env:  []string{"RAG_TEST_VALUE=abc"},
		})
		require.NoError(t, err)
		require.Len(t, result.Stdout, 2)
		require.Contains(t, result.Stdout[0], dir)
		require.Equal(t, "abc", result.Stdout[1])
	})

	t.Run("Exit code is propagated", func(t *testing.T) {
		_, err := runner.Run(context.Background(), NewCommand("sh", "-c", "echo broken >&2; exit 3"))
		require.Error(t, err)
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		require.Equal(t, 3, exitErr.Code)
		require.Contains(t, exitErr.Stderr, "broken")
		require.Equal(t, 3, ExitCode(err))
	})

	t.Run("Unknown command fails", func(t *testing.T) {
		_, err := runner.Run(context.Background(), NewCommand("may-the-fourth-be-with-you"))
		require.Error(t, err)
		require.NotEqual(t, 0, ExitCode(err))
	})

	t.Run("Cancelled context interrupts the command", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()
		start := time.Now()
		_, err := runner.Run(ctx, NewCommand("sleep", "10"))
		require.Error(t, err)
		require.True(t, e.IsContextClosedError(err))
		require.WithinDuration(t, start, time.Now(), 5*time.Second)
	})

	t.Run("Background process can be stopped right after start", func(t *testing.T) {
		proc, err := runner.Start(context.Background(), NewCommand("sleep", "3600"))
		require.NoError(t, err)

		stopped := make(chan error, 1)
		go func() { stopped <- proc.Stop() }()
		select {
		case err := <-stopped:
			require.NoError(t, err)
		case <-time.After(3 * time.Second):
			t.Fatal("background process was not killed")
		}
		select {
		case <-proc.Done():
		default:
			t.Fatal("background process is still running after stop")
		}
	})

	t.Run("Cancelled context kills background process", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		proc, err := runner.Start(ctx, NewCommand("sleep", "3600"))
		require.NoError(t, err)
		cancel()
		select {
		case <-proc.Done():
		case <-time.After(3 * time.Second):
			t.Fatal("background process was not killed")
		}
	})

	t.Run("Unknown background command fails", func(t *testing.T) {
		_, err := runner.Start(context.Background(), NewCommand("may-the-fourth-be-with-you"))
		require.Error(t, err)
		require.Equal(t, 127, ExitCode(err))
	})

	t.Run("Command interrupted immediately", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		start := time.Now()
		_, err := runner.Run(ctx, NewCommand("sleep", "3600"))
		require.Error(t, err)
		require.WithinDuration(t, start, time.Now(), 3*time.Second)
	})
}

func TestCmdRunnerRetries(t *testing.T) {
	runner := NewCmdRunner(zaptest.NewLogger(t).Sugar(), 3)
	runner.retryDelay = 10 * time.Millisecond

	marker := t.TempDir() + "/marker"
	//fails on first call, succeeds on second call
	script := "if [ -f " + marker + " ]; then exit 0; else touch " + marker + "; exit 1; fi"
	_, err := runner.Run(context.Background(), NewCommand("sh", "-c", script))
	require.NoError(t, err)
}

func TestExitCode(t *testing.T) {
	require.Equal(t, 0, ExitCode(nil))
	require.Equal(t, 1, ExitCode(errors.New("something went wrong")))
	require.Equal(t, 42, ExitCode(errors.Wrap(&ExitError{Command: "terraform apply", Code: 42}, "step failed")))
}

func TestCommandString(t *testing.T) {
	cmd := NewCommand("az", "login", "--service-principal", "-u", "client", "-p", "s3cr3t")
	require.Equal(t, "az login --service-principal -u client -p s3cr3t", cmd.String())

	cmd.Secrets = []string{"s3cr3t", ""}
	require.Equal(t, "az login --service-principal -u client -p ***", cmd.String())
}
