package deploy

import (
	"context"

	"github.com/kyma-incubator/rag-deployer/pkg/azure"
	"github.com/kyma-incubator/rag-deployer/pkg/chart"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/kyma-incubator/rag-deployer/pkg/image"
	"github.com/kyma-incubator/rag-deployer/pkg/infra"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes/progress"
	"github.com/kyma-incubator/rag-deployer/pkg/preflight"
	"github.com/kyma-incubator/rag-deployer/pkg/workspace"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

type PreflightChecker interface {
	Run(ctx context.Context) (*preflight.Report, error)
}

type CloudCLI interface {
	Login(ctx context.Context, cfg *config.Config) (*azure.Account, error)
	GetCredentials(ctx context.Context, resourceGroup, cluster, kubeconfigPath string) error
	AcrLogin(ctx context.Context, registry string) error
}

type Infrastructure interface {
	Apply(ctx context.Context) error
	Outputs(ctx context.Context) (infra.Outputs, error)
	Destroy(ctx context.Context) error
}

type ImageBuilder interface {
	BuildAndPush(ctx context.Context, loginServer string) (string, error)
}

type AddonInstaller interface {
	InstallAll(ctx context.Context, releases []*chart.Release) error
}

type WorkspaceProvider interface {
	Get(ctx context.Context, repoURL, revision, manifestsDir string) (*workspace.Workspace, error)
}

type Cluster interface {
	Apply(ctx context.Context, resources []*unstructured.Unstructured, namespace string,
		interceptors ...kubernetes.ResourceInterceptor) ([]*kubernetes.Resource, error)
	DeleteNamespace(ctx context.Context, namespace string, tracking progress.Config) error
	ProgressTracker(config progress.Config) (*progress.Tracker, error)
}

// Dependencies are the engines a sequence talks to. Cluster related dependencies are created
// lazily because the kubeconfig exists only after the cluster access was configured.
type Dependencies struct {
	Runner     executor.Runner
	Preflight  PreflightChecker
	Cloud      CloudCLI
	Infra      Infrastructure
	Images     ImageBuilder
	Workspaces WorkspaceProvider
	NewCluster func(kubeconfigPath string) (Cluster, error)
	NewAddons  func(kubeconfigPath string) AddonInstaller
}

func NewDependencies(cfg *config.Config, runner executor.Runner, logger *zap.SugaredLogger) *Dependencies {
	return &Dependencies{
		Runner:    runner,
		Preflight: preflight.NewChecker(runner, logger),
		Cloud:     azure.NewCLI(runner, logger),
		Infra:     infra.NewTerraform(runner, cfg, logger),
		Images:    image.NewBuilder(runner, cfg, logger),
		Workspaces: &workspace.Factory{
			StorageDir: cfg.ManifestsCacheDir(),
			Logger:     logger,
		},
		NewCluster: func(kubeconfigPath string) (Cluster, error) {
			return kubernetes.NewClient(kubeconfigPath, logger)
		},
		NewAddons: func(kubeconfigPath string) AddonInstaller {
			return chart.NewInstaller(kubeconfigPath, cfg.ReadinessTimeout, logger)
		},
	}
}
