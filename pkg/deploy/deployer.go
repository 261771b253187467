package deploy

import (
	"context"
	"os"
	"strings"

	"github.com/kyma-incubator/rag-deployer/pkg/azure"
	"github.com/kyma-incubator/rag-deployer/pkg/chart"
	"github.com/kyma-incubator/rag-deployer/pkg/config"
	"github.com/kyma-incubator/rag-deployer/pkg/infra"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes/progress"
	"github.com/kyma-incubator/rag-deployer/pkg/metrics"
	"github.com/kyma-incubator/rag-deployer/pkg/preflight"
	"github.com/kyma-incubator/rag-deployer/pkg/smoketest"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	DeploySequence = "deploy"

	StepPreflight        = "preflight"
	StepAuthenticate     = "authenticate"
	StepProvisionInfra   = "provision-infrastructure"
	StepClusterAccess    = "configure-cluster-access"
	StepBuildImage       = "build-and-push-image"
	StepInstallAddons    = "install-cluster-addons"
	StepApplyManifests   = "apply-manifests"
	StepWaitForReadiness = "wait-for-readiness"
	StepSmokeTest        = "smoke-test"
)

// Deployer provisions the infrastructure and deploys the application on top of it.
type Deployer struct {
	cfg     *config.Config
	deps    *Dependencies
	runID   string
	logger  *zap.SugaredLogger
	metrics *metrics.Collector

	account     *azure.Account
	outputs     infra.Outputs
	image       string
	cluster     Cluster
	applied     []*kubernetes.Resource
	smokeReport *smoketest.Report
}

func NewDeployer(cfg *config.Config, deps *Dependencies, runID string, logger *zap.SugaredLogger, collector *metrics.Collector) *Deployer {
	return &Deployer{
		cfg:     cfg,
		deps:    deps,
		runID:   runID,
		logger:  logger,
		metrics: collector,
	}
}

func (d *Deployer) Steps() []Step {
	return []Step{
		{Name: StepPreflight, Run: d.preflight},
		{Name: StepAuthenticate, Run: d.authenticate},
		{Name: StepProvisionInfra, Run: d.provisionInfra},
		{Name: StepClusterAccess, Run: d.configureClusterAccess},
		{Name: StepBuildImage, Run: d.buildImage},
		{Name: StepInstallAddons, Run: d.installAddons},
		{Name: StepApplyManifests, Run: d.applyManifests},
		{Name: StepWaitForReadiness, Run: d.waitForReadiness},
		{Name: StepSmokeTest, Run: d.smokeTest},
	}
}

// Run executes all deployment steps and stops at the first failure.
func (d *Deployer) Run(ctx context.Context) ([]*StepResult, error) {
	seq := &Sequence{
		Name:    DeploySequence,
		Steps:   d.Steps(),
		Logger:  d.logger,
		Metrics: d.metrics,
	}
	return seq.Run(ctx)
}

// SmokeReport returns the result of the health check (nil if the step was not reached).
func (d *Deployer) SmokeReport() *smoketest.Report {
	return d.smokeReport
}

func (d *Deployer) Image() string {
	return d.image
}

func (d *Deployer) preflight(ctx context.Context) error {
	report, err := d.deps.Preflight.Run(ctx)
	if err != nil {
		return err
	}
	for _, check := range report.Checks {
		if check.Status != preflight.StatusOK {
			d.logger.Warnf("Tool '%s': %s (%s)", check.Tool, check.Status, check.Message)
		}
	}
	return report.Error()
}

func (d *Deployer) authenticate(ctx context.Context) error {
	account, err := d.deps.Cloud.Login(ctx, d.cfg)
	if err != nil {
		return err
	}
	d.account = account
	return nil
}

func (d *Deployer) provisionInfra(ctx context.Context) error {
	if err := d.deps.Infra.Apply(ctx); err != nil {
		return err
	}
	outputs, err := d.deps.Infra.Outputs(ctx)
	if err != nil {
		return err
	}
	if err := outputs.Require(infra.OutputAcrLoginServer, infra.OutputAksClusterName, infra.OutputResourceGroupName); err != nil {
		return err
	}
	d.outputs = outputs
	return nil
}

func (d *Deployer) configureClusterAccess(ctx context.Context) error {
	if err := os.MkdirAll(d.cfg.StackDir(), 0700); err != nil {
		return errors.Wrapf(err, "failed to create directory '%s'", d.cfg.StackDir())
	}
	kubeconfig := d.cfg.KubeconfigPath()
	if err := d.deps.Cloud.GetCredentials(ctx, d.outputs.ResourceGroupName(), d.outputs.AksClusterName(), kubeconfig); err != nil {
		return err
	}
	cluster, err := d.deps.NewCluster(kubeconfig)
	if err != nil {
		return err
	}
	d.cluster = cluster
	return nil
}

func (d *Deployer) buildImage(ctx context.Context) error {
	loginServer := d.outputs.AcrLoginServer()
	if err := d.deps.Cloud.AcrLogin(ctx, registryName(loginServer)); err != nil {
		return err
	}
	image, err := d.deps.Images.BuildAndPush(ctx, loginServer)
	if err != nil {
		return err
	}
	d.image = image
	return nil
}

func (d *Deployer) installAddons(ctx context.Context) error {
	releases := chart.DefaultAddons()
	if err := chart.ApplyOverrides(releases, d.cfg.HelmValues); err != nil {
		return err
	}
	if err := d.deps.NewAddons(d.cfg.KubeconfigPath()).InstallAll(ctx, releases); err != nil {
		return err
	}

	tracker, err := d.cluster.ProgressTracker(d.trackingConfig())
	if err != nil {
		return err
	}
	tracker.AddResource(progress.CustomResourceDefinition, "", chart.SecretProviderClassCRD)
	return tracker.Watch(ctx, progress.ReadyState)
}

func (d *Deployer) applyManifests(ctx context.Context) error {
	ws, err := d.deps.Workspaces.Get(ctx, d.cfg.ManifestsRepo, d.cfg.ManifestsRevision, d.cfg.ManifestsDir)
	if err != nil {
		return err
	}
	loader := &kubernetes.ManifestLoader{
		Dir:       ws.ManifestsDir,
		Files:     d.cfg.ManifestFiles,
		Variables: d.placeholders(),
		Logger:    d.logger,
	}
	manifests, err := loader.Load()
	if err != nil {
		return err
	}

	interceptors := []kubernetes.ResourceInterceptor{
		&kubernetes.LabelsInterceptor{Project: d.cfg.ProjectName, Environment: d.cfg.Environment},
		&kubernetes.AnnotationsInterceptor{RunID: d.runID},
		&kubernetes.NamespaceInterceptor{},
	}
	d.applied = nil
	for _, manifest := range manifests {
		d.logger.Infof("Applying manifest '%s' (%d resources)", manifest.File, len(manifest.Resources))
		applied, err := d.cluster.Apply(ctx, manifest.Resources, d.cfg.Namespace, interceptors...)
		d.applied = append(d.applied, applied...)
		if err != nil {
			return errors.Wrapf(err, "failed to apply manifest '%s'", manifest.File)
		}
	}
	return nil
}

func (d *Deployer) waitForReadiness(ctx context.Context) error {
	tracker, err := d.cluster.ProgressTracker(d.trackingConfig())
	if err != nil {
		return err
	}
	if kubernetes.TrackResources(tracker, d.applied) == 0 {
		d.logger.Warn("Applied manifests contain no workloads to wait for")
	}
	return tracker.Watch(ctx, progress.ReadyState)
}

func (d *Deployer) smokeTest(ctx context.Context) error {
	forward := &PortForward{
		Runner:     d.deps.Runner,
		Kubeconfig: d.cfg.KubeconfigPath(),
		Namespace:  d.cfg.Namespace,
		Service:    d.cfg.ServiceName,
		LocalPort:  d.cfg.LocalPort,
		RemotePort: d.cfg.ServicePort,
		Logger:     d.logger,
	}
	var report *smoketest.Report
	err := forward.Do(ctx, func(baseURL string) error {
		runner, err := smoketest.NewRunner(smoketest.Config{
			BaseURL: baseURL,
			Timeout: d.cfg.SmokeTestTimeout,
			Probes:  []string{smoketest.HealthProbe},
		}, d.logger)
		if err != nil {
			return err
		}
		report = runner.Run(ctx)
		return nil
	})
	if err != nil {
		return err
	}
	d.smokeReport = report
	if d.metrics != nil {
		for _, result := range report.Results {
			d.metrics.ProbeStatus.Set(result.Name, string(result.Status))
		}
	}
	return report.Error()
}

// placeholders returns the values available to ${VAR} placeholders in manifests.
func (d *Deployer) placeholders() map[string]string {
	vars := d.outputs.Variables()
	descr := d.cfg.Descriptor()
	tenantID := d.outputs.TenantID()
	if tenantID == "" && d.account != nil {
		tenantID = d.account.TenantID
	}
	keyVault := d.outputs.KeyVaultName()
	if keyVault == "" {
		keyVault = descr.KeyVaultName
	}
	for key, value := range map[string]string{
		"IMAGE":            d.image,
		"NAMESPACE":        d.cfg.Namespace,
		"PROJECT_NAME":     d.cfg.ProjectName,
		"ENVIRONMENT":      d.cfg.Environment,
		"AZURE_REGION":     d.cfg.Region,
		"ACR_LOGIN_SERVER": d.outputs.AcrLoginServer(),
		"KEY_VAULT_NAME":   keyVault,
		"TENANT_ID":        tenantID,
		"SERVICE_NAME":     d.cfg.ServiceName,
		"RUN_ID":           d.runID,
	} {
		vars[key] = value
	}
	return vars
}

func (d *Deployer) trackingConfig() progress.Config {
	return progress.Config{
		Interval: d.cfg.ReadinessInterval,
		Timeout:  d.cfg.ReadinessTimeout,
	}
}

// registryName strips the domain from the login server (e.g. 'acrragappdev.azurecr.io' becomes 'acrragappdev').
func registryName(loginServer string) string {
	if idx := strings.Index(loginServer, "."); idx > 0 {
		return loginServer[:idx]
	}
	return loginServer
}
