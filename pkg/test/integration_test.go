package test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunIntegrationTests(t *testing.T) {
	for value, expected := range map[string]bool{
		"":      false,
		"false": false,
		"0":     false,
		"yes":   false,
		"true":  true,
		"TRUE":  true,
		"1":     true,
	} {
		t.Setenv(EnvIntegrationTests, value)
		require.Equal(t, expected, RunIntegrationTests(), "value %q", value)
	}
}

func TestIntegrationTestSkips(t *testing.T) {
	t.Setenv(EnvIntegrationTests, "false")
	skipped := t.Run("gated", func(t *testing.T) {
		IntegrationTest(t)
		t.Fatal("test was not skipped")
	})
	require.True(t, skipped)
}

func TestKubeconfig(t *testing.T) {
	kubeconfig := filepath.Join(t.TempDir(), "kubeconfig")
	require.NoError(t, os.WriteFile(kubeconfig, []byte("apiVersion: v1\nkind: Config\n"), 0600))
	t.Setenv(envKubeconfig, kubeconfig)
	require.Equal(t, kubeconfig, Kubeconfig(t))
}
