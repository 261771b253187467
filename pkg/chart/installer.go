package chart

import (
	"context"
	"time"

	e "github.com/kyma-incubator/rag-deployer/pkg/error"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"helm.sh/helm/v3/pkg/action"
	helmchart "helm.sh/helm/v3/pkg/chart"
	"helm.sh/helm/v3/pkg/chart/loader"
	"helm.sh/helm/v3/pkg/cli"
	helmrelease "helm.sh/helm/v3/pkg/release"
	"helm.sh/helm/v3/pkg/releaseutil"
	"helm.sh/helm/v3/pkg/storage/driver"
	"k8s.io/cli-runtime/pkg/genericclioptions"
)

const (
	helmDriver     = "secrets"
	defaultTimeout = 5 * time.Minute
)

// Installer installs or upgrades Helm releases through the Helm SDK.
type Installer struct {
	kubeconfig    string
	timeout       time.Duration
	logger        *zap.SugaredLogger
	settings      *cli.EnvSettings
	configFactory func(namespace string) (*action.Configuration, error)
}

func NewInstaller(kubeconfigPath string, timeout time.Duration, logger *zap.SugaredLogger) *Installer {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	installer := &Installer{
		kubeconfig: kubeconfigPath,
		timeout:    timeout,
		logger:     logger,
		settings:   cli.New(),
	}
	installer.configFactory = installer.newActionConfig
	return installer
}

func (i *Installer) newActionConfig(namespace string) (*action.Configuration, error) {
	clientGetter := genericclioptions.NewConfigFlags(false)
	clientGetter.KubeConfig = &i.kubeconfig
	clientGetter.Namespace = &namespace
	cfg := new(action.Configuration)
	if err := cfg.Init(clientGetter, namespace, helmDriver, i.logger.Debugf); err != nil {
		return nil, errors.Wrapf(err, "failed to initialize Helm for namespace '%s'", namespace)
	}
	return cfg, nil
}

// Install installs the release or upgrades it if it already exists and waits until its resources are ready.
func (i *Installer) Install(ctx context.Context, release *Release) error {
	select {
	case <-ctx.Done():
		return e.NewContextClosedError("helm installer", "installation of release '%s' was not started", release.Name)
	default:
	}

	cfg, err := i.configFactory(release.Namespace)
	if err != nil {
		return err
	}

	install := action.NewInstall(cfg)
	install.RepoURL = release.RepoURL
	install.Version = release.Version
	chartPath, err := install.ChartPathOptions.LocateChart(release.Chart, i.settings)
	if err != nil {
		return errors.Wrapf(err, "failed to locate chart of release %s", release)
	}
	helmChart, err := loader.Load(chartPath)
	if err != nil {
		return errors.Wrapf(err, "failed to load chart of release %s", release)
	}

	values, err := release.MergedValues()
	if err != nil {
		return err
	}

	history := action.NewHistory(cfg)
	revisions, err := history.Run(release.Name)
	if errors.Is(err, driver.ErrReleaseNotFound) || (err == nil && len(revisions) == 0) {
		i.logger.Infof("Installing Helm release %s", release)
		return i.install(install, release, helmChart, values)
	}
	if err != nil {
		return errors.Wrapf(err, "failed to retrieve history of Helm release %s", release)
	}

	releaseutil.Reverse(revisions, releaseutil.SortByRevision)
	last := revisions[0]
	if last.Info.Status.IsPending() {
		return errors.Errorf("Helm release %s is locked by a pending operation (status '%s' in revision %d)",
			release, last.Info.Status, last.Version)
	}
	if last.Info.Status == helmrelease.StatusFailed {
		if _, err := cfg.Releases.Deployed(release.Name); errors.Is(err, driver.ErrNoDeployedReleases) {
			i.logger.Infof("Helm release %s was never deployed successfully: replacing failed revision %d",
				release, last.Version)
			install.Replace = true
			return i.install(install, release, helmChart, values)
		}
	}

	i.logger.Infof("Upgrading Helm release %s", release)
	upgrade := action.NewUpgrade(cfg)
	upgrade.Namespace = release.Namespace
	upgrade.Wait = true
	upgrade.Timeout = i.timeout
	if _, err := upgrade.Run(release.Name, helmChart, values); err != nil {
		return errors.Wrapf(err, "failed to upgrade Helm release %s", release)
	}
	return nil
}

func (i *Installer) install(install *action.Install, release *Release, helmChart *helmchart.Chart, values map[string]interface{}) error {
	install.ReleaseName = release.Name
	install.Namespace = release.Namespace
	install.CreateNamespace = true
	install.Wait = true
	install.Timeout = i.timeout
	if _, err := install.Run(helmChart, values); err != nil {
		return errors.Wrapf(err, "failed to install Helm release %s", release)
	}
	return nil
}

// InstallAll installs the releases in the given order and stops at the first failure.
func (i *Installer) InstallAll(ctx context.Context, releases []*Release) error {
	for _, release := range releases {
		if err := i.Install(ctx, release); err != nil {
			return err
		}
	}
	return nil
}
