package deploy

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/kyma-incubator/rag-deployer/pkg/azure"
	"github.com/kyma-incubator/rag-deployer/pkg/chart"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/executor"
	"github.com/kyma-incubator/rag-deployer/pkg/infra"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes/progress"
	"github.com/kyma-incubator/rag-deployer/pkg/preflight"
	"github.com/kyma-incubator/rag-deployer/pkg/workspace"
	"go.uber.org/zap/zaptest"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextfake "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset/fake"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/client-go/kubernetes/fake"
)

// recorder tracks the calls of all fakes in their order and fails the configured call.
type recorder struct {
	mu     sync.Mutex
	calls  []string
	failAt string
}

func (r *recorder) call(format string, args ...interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := fmt.Sprintf(format, args...)
	r.calls = append(r.calls, call)
	if r.failAt != "" && strings.HasPrefix(call, r.failAt) {
		return &executor.ExitError{Command: call, Code: 42}
	}
	return nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakePreflight struct{ rec *recorder }

func (f *fakePreflight) Run(ctx context.Context) (*preflight.Report, error) {
	return &preflight.Report{}, f.rec.call("preflight")
}

type fakeCloud struct{ rec *recorder }

func (f *fakeCloud) Login(ctx context.Context, cfg *config.Config) (*azure.Account, error) {
	if err := f.rec.call("login"); err != nil {
		return nil, err
	}
	return &azure.Account{SubscriptionID: "sub", TenantID: "tenant-from-session"}, nil
}

func (f *fakeCloud) GetCredentials(ctx context.Context, resourceGroup, cluster, kubeconfigPath string) error {
	return f.rec.call("get-credentials %s/%s", resourceGroup, cluster)
}

func (f *fakeCloud) AcrLogin(ctx context.Context, registry string) error {
	return f.rec.call("acr-login %s", registry)
}

type fakeInfra struct{ rec *recorder }

func (f *fakeInfra) Apply(ctx context.Context) error {
	return f.rec.call("terraform-apply")
}

func (f *fakeInfra) Outputs(ctx context.Context) (infra.Outputs, error) {
	return infra.Outputs{
		infra.OutputAcrLoginServer:    "acrragappdev.azurecr.io",
		infra.OutputAksClusterName:    "aks-ragapp-dev",
		infra.OutputResourceGroupName: "rg-ragapp-dev",
		infra.OutputKeyVaultName:      "kv-ragapp-dev",
	}, f.rec.call("terraform-output")
}

func (f *fakeInfra) Destroy(ctx context.Context) error {
	return f.rec.call("terraform-destroy")
}

type fakeImages struct{ rec *recorder }

func (f *fakeImages) BuildAndPush(ctx context.Context, loginServer string) (string, error) {
	return loginServer + "/rag-app:abc", f.rec.call("build-push %s", loginServer)
}

type fakeAddons struct{ rec *recorder }

func (f *fakeAddons) InstallAll(ctx context.Context, releases []*chart.Release) error {
	var names []string
	for _, release := range releases {
		names = append(names, release.Name)
	}
	return f.rec.call("helm-install %s", strings.Join(names, ","))
}

type fakeWorkspaces struct {
	rec *recorder
	dir string
}

func (f *fakeWorkspaces) Get(ctx context.Context, repoURL, revision, manifestsDir string) (*workspace.Workspace, error) {
	return &workspace.Workspace{ManifestsDir: f.dir}, f.rec.call("workspace")
}

type fakeCluster struct {
	t       *testing.T
	rec     *recorder
	applied []*unstructured.Unstructured
}

func (f *fakeCluster) Apply(ctx context.Context, resources []*unstructured.Unstructured, namespace string,
	interceptors ...kubernetes.ResourceInterceptor) ([]*kubernetes.Resource, error) {
	var result []*kubernetes.Resource
	for _, u := range resources {
		for _, interceptor := range interceptors {
			if err := interceptor.Intercept(u); err != nil {
				return result, err
			}
		}
		if err := f.rec.call("apply %s/%s", u.GetKind(), u.GetName()); err != nil {
			return result, err
		}
		ns := u.GetNamespace()
		if ns == "" && u.GetKind() != "Namespace" {
			ns = namespace
		}
		f.applied = append(f.applied, u)
		result = append(result, &kubernetes.Resource{Kind: u.GetKind(), Name: u.GetName(), Namespace: ns})
	}
	return result, nil
}

func (f *fakeCluster) DeleteNamespace(ctx context.Context, namespace string, tracking progress.Config) error {
	return f.rec.call("delete-namespace %s", namespace)
}

func (f *fakeCluster) ProgressTracker(cfg progress.Config) (*progress.Tracker, error) {
	replicas := int32(1)
	clientset := fake.NewSimpleClientset(
		&corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{Name: "ragapp"},
			Status:     corev1.NamespaceStatus{Phase: corev1.NamespaceActive},
		},
		&appsv1.Deployment{
			ObjectMeta: metav1.ObjectMeta{Name: "rag-app", Namespace: "ragapp"},
			Spec:       appsv1.DeploymentSpec{Replicas: &replicas},
			Status:     appsv1.DeploymentStatus{Replicas: 1, UpdatedReplicas: 1, AvailableReplicas: 1},
		})
	apiext := apiextfake.NewSimpleClientset(&apiextv1.CustomResourceDefinition{
		ObjectMeta: metav1.ObjectMeta{Name: chart.SecretProviderClassCRD},
		Status: apiextv1.CustomResourceDefinitionStatus{
			Conditions: []apiextv1.CustomResourceDefinitionCondition{
				{Type: apiextv1.Established, Status: apiextv1.ConditionTrue},
			},
		},
	})
	return progress.NewProgressTracker(clientset, apiext, zaptest.NewLogger(f.t).Sugar(), cfg)
}

func newFakeDependencies(t *testing.T, rec *recorder, runner executor.Runner, manifestsDir string) (*Dependencies, *fakeCluster) {
	cluster := &fakeCluster{t: t, rec: rec}
	return &Dependencies{
		Runner:     runner,
		Preflight:  &fakePreflight{rec: rec},
		Cloud:      &fakeCloud{rec: rec},
		Infra:      &fakeInfra{rec: rec},
		Images:     &fakeImages{rec: rec},
		Workspaces: &fakeWorkspaces{rec: rec, dir: manifestsDir},
		NewCluster: func(kubeconfigPath string) (Cluster, error) {
			return cluster, rec.call("new-cluster")
		},
		NewAddons: func(kubeconfigPath string) AddonInstaller {
			return &fakeAddons{rec: rec}
		},
	}, cluster
}
