package test

import (
	"os"
	"strconv"
	"testing"

	file "github.com/kyma-incubator/rag-deployer/pkg/files"
)

const (
	EnvIntegrationTests = "RAG_DEPLOYER_INTEGRATION_TESTS"
	envKubeconfig       = "KUBECONFIG"
)

// RunIntegrationTests reports whether $RAG_DEPLOYER_INTEGRATION_TESTS holds a true boolean value.
func RunIntegrationTests() bool {
	enabled, err := strconv.ParseBool(os.Getenv(EnvIntegrationTests))
	return err == nil && enabled
}

// IntegrationTest skips the calling test unless integration tests are enabled.
// Integration tests talk to real command line tools, clusters or cloud accounts.
func IntegrationTest(t *testing.T) {
	t.Helper()
	if !RunIntegrationTests() {
		t.Skipf("Integration tests disabled: set environment variable '%s=true' to run them", EnvIntegrationTests)
	}
}

// Kubeconfig returns the path of the kubeconfig file defined by $KUBECONFIG and skips the test if it is missing.
func Kubeconfig(t *testing.T) string {
	t.Helper()
	kubeconfig := os.Getenv(envKubeconfig)
	if kubeconfig == "" {
		t.Skipf("Environment variable %s is not defined", envKubeconfig)
	}
	if !file.Exists(kubeconfig) {
		t.Skipf("Kubeconfig file '%s' not found", kubeconfig)
	}
	return kubeconfig
}
