package chart

import (
	"fmt"
	"strings"

	"github.com/imdario/mergo"
	"github.com/pkg/errors"
	"helm.sh/helm/v3/pkg/strvals"
)

// SecretProviderClassCRD is installed by the Secrets Store CSI driver and has to be established
// before SecretProviderClass manifests can be applied.
const SecretProviderClassCRD = "secretproviderclasses.secrets-store.csi.x-k8s.io"

// Release is a Helm chart installed as cluster add-on.
type Release struct {
	Name      string
	Namespace string
	Chart     string //chart name in the repository or path to a local chart
	RepoURL   string
	Version   string
	Values    map[string]interface{}
	Set       []string //overrides in '--set' notation (e.g. controller.replicaCount=2)
}

func (r *Release) String() string {
	return fmt.Sprintf("%s/%s (chart: %s, version: %s)", r.Namespace, r.Name, r.Chart, r.Version)
}

// DefaultAddons returns the add-ons required by the application: an ingress controller and
// the Azure Key Vault provider for the Secrets Store CSI driver.
func DefaultAddons() []*Release {
	return []*Release{
		{
			Name:      "ingress-nginx",
			Namespace: "ingress-nginx",
			Chart:     "ingress-nginx",
			RepoURL:   "https://kubernetes.github.io/ingress-nginx",
			Version:   "4.8.3",
			Values: map[string]interface{}{
				"controller": map[string]interface{}{
					"service": map[string]interface{}{
						"annotations": map[string]interface{}{
							"service.beta.kubernetes.io/azure-load-balancer-health-probe-request-path": "/healthz",
						},
					},
				},
			},
		},
		{
			Name:      "csi-secrets-store-provider-azure",
			Namespace: "kube-system",
			Chart:     "csi-secrets-store-provider-azure",
			RepoURL:   "https://azure.github.io/secrets-store-csi-driver-provider-azure/charts",
			Version:   "1.4.1",
			Values: map[string]interface{}{
				"secrets-store-csi-driver": map[string]interface{}{
					"syncSecret": map[string]interface{}{
						"enabled": true,
					},
				},
			},
		},
	}
}

// ApplyOverrides assigns '--set' overrides to the releases. Each override is prefixed by the
// name of the release it belongs to (e.g. 'ingress-nginx:controller.replicaCount=2').
func ApplyOverrides(releases []*Release, overrides []string) error {
	for _, override := range overrides {
		releaseName, setValue, err := splitOverride(override)
		if err != nil {
			return err
		}
		var found bool
		for _, release := range releases {
			if release.Name == releaseName {
				release.Set = append(release.Set, setValue)
				found = true
			}
		}
		if !found {
			return fmt.Errorf("override '%s' refers to unknown release '%s'", override, releaseName)
		}
	}
	return nil
}

func splitOverride(override string) (string, string, error) {
	sepIdx := strings.Index(override, ":")
	eqIdx := strings.Index(override, "=")
	if sepIdx <= 0 || (eqIdx >= 0 && eqIdx < sepIdx) {
		return "", "", fmt.Errorf("override '%s' has to be in the format '<release>:<key>=<value>'", override)
	}
	return override[:sepIdx], override[sepIdx+1:], nil
}

// MergedValues returns the values of the release with all '--set' overrides merged on top.
// Helm coalesces the result with the defaults of the chart.
func (r *Release) MergedValues() (map[string]interface{}, error) {
	result := copyValues(r.Values)
	for _, set := range r.Set {
		setValues := make(map[string]interface{})
		if err := strvals.ParseInto(set, setValues); err != nil {
			return nil, errors.Wrapf(err, "failed to parse value '%s' of release '%s'", set, r.Name)
		}
		if err := mergo.Merge(&result, setValues, mergo.WithOverride); err != nil {
			return nil, errors.Wrapf(err, "failed to merge value '%s' of release '%s'", set, r.Name)
		}
	}
	return result, nil
}

func copyValues(values map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{}, len(values))
	for key, value := range values {
		if nested, ok := value.(map[string]interface{}); ok {
			result[key] = copyValues(nested)
			continue
		}
		result[key] = value
	}
	return result
}
