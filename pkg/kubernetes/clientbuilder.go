package kubernetes

import (
	"fmt"
	"os"

	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/pkg/errors"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

const EnvVarKubeconfig = "KUBECONFIG"

// RestConfigBuilder resolves the REST configuration of the target cluster from a kubeconfig file or string.
type RestConfigBuilder struct {
	kubeconfig []byte
	err        error
}

func NewRestConfigBuilder() *RestConfigBuilder {
	return &RestConfigBuilder{}
}

func (cb *RestConfigBuilder) WithFile(filePath string) *RestConfigBuilder {
	cb.kubeconfig, cb.err = cb.loadFile(filePath)
	return cb
}

func (cb *RestConfigBuilder) WithString(kubeconfig string) *RestConfigBuilder {
	cb.kubeconfig = []byte(kubeconfig)
	return cb
}

func (cb *RestConfigBuilder) Build() (*rest.Config, error) {
	if cb.err != nil {
		return nil, cb.err
	}
	if len(cb.kubeconfig) == 0 {
		kubeconfigPath := os.Getenv(EnvVarKubeconfig)
		if kubeconfigPath == "" {
			return nil, fmt.Errorf("kubeconfig undefined: please provide it as file, string or set env-var %s",
				EnvVarKubeconfig)
		}
		cb.kubeconfig, cb.err = cb.loadFile(kubeconfigPath)
		if cb.err != nil {
			return nil, cb.err
		}
	}
	config, err := clientcmd.RESTConfigFromKubeConfig(cb.kubeconfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kubernetes client configuration using provided kubeconfig")
	}
	return config, nil
}

func (cb *RestConfigBuilder) loadFile(filePath string) ([]byte, error) {
	if !file.Exists(filePath) {
		return nil, fmt.Errorf("kubeconfig file not found at path '%s'", filePath)
	}
	return os.ReadFile(filePath)
}
