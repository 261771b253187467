package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DefaultProjectName = "ragapp"
	DefaultEnvironment = "dev"
	DefaultRegion      = "eastus"
)

var nameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)

// Config contains all settings of a deployment run. Each key can be overwritten by
// an environment variable with the upper-cased key name (e.g. PROJECT_NAME).
type Config struct {
	ProjectName    string `mapstructure:"project_name"`
	Environment    string `mapstructure:"environment"`
	Region         string `mapstructure:"azure_region"`
	SubscriptionID string `mapstructure:"azure_subscription_id"`
	ClientID       string `mapstructure:"arm_client_id"`
	ClientSecret   string `mapstructure:"arm_client_secret"`
	TenantID       string `mapstructure:"arm_tenant_id"`

	WorkDir      string `mapstructure:"work_dir"`
	TerraformDir string `mapstructure:"terraform_dir"`

	AppDir    string `mapstructure:"app_dir"`
	ImageName string `mapstructure:"image_name"`
	ImageTag  string `mapstructure:"image_tag"`

	ManifestsDir      string   `mapstructure:"manifests_dir"`
	ManifestsRepo     string   `mapstructure:"manifests_repo"`
	ManifestsRevision string   `mapstructure:"manifests_revision"`
	ManifestFiles     []string `mapstructure:"manifest_files"`
	Namespace         string   `mapstructure:"namespace"`

	ServiceName string `mapstructure:"service_name"`
	ServicePort int    `mapstructure:"service_port"`
	LocalPort   int    `mapstructure:"local_port"`

	ReadinessTimeout  time.Duration `mapstructure:"readiness_timeout"`
	ReadinessInterval time.Duration `mapstructure:"readiness_interval"`
	CommandAttempts   uint          `mapstructure:"command_attempts"`

	AksNodeVMSize string `mapstructure:"aks_node_vm_size"`
	AksNodeCount  int    `mapstructure:"aks_node_count"`
	AcrSku        string `mapstructure:"acr_sku"`
	SearchSku     string `mapstructure:"search_sku"`

	HelmValues []string `mapstructure:"helm_values"`

	SmokeTestFile    string        `mapstructure:"smoke_test_file"`
	SmokeTestQuery   string        `mapstructure:"smoke_test_query"`
	SmokeTestTimeout time.Duration `mapstructure:"smoke_test_timeout"`

	PushgatewayURL string `mapstructure:"pushgateway_url"`
}

var defaults = map[string]interface{}{
	"project_name":          DefaultProjectName,
	"environment":           DefaultEnvironment,
	"azure_region":          DefaultRegion,
	"azure_subscription_id": "",
	"arm_client_id":         "",
	"arm_client_secret":     "",
	"arm_tenant_id":         "",
	"work_dir":              "",
	"terraform_dir":         filepath.Join("infra", "terraform"),
	"app_dir":               "app",
	"image_name":            "rag-app",
	"image_tag":             "",
	"manifests_dir":         "k8s",
	"manifests_repo":        "",
	"manifests_revision":    "main",
	"manifest_files":        []string{},
	"namespace":             "",
	"service_name":          "rag-app",
	"service_port":          80,
	"local_port":            8080,
	"readiness_timeout":     5 * time.Minute,
	"readiness_interval":    5 * time.Second,
	"command_attempts":      1,
	"aks_node_vm_size":      "Standard_D2s_v3",
	"aks_node_count":        2,
	"acr_sku":               "Basic",
	"search_sku":            "basic",
	"helm_values":           []string{},
	"smoke_test_file":       "test.pdf",
	"smoke_test_query":      "What is this document about?",
	"smoke_test_timeout":    30 * time.Second,
	"pushgateway_url":       "",
}

// SetDefaults registers all configuration keys with their default values. Viper resolves
// environment variables only for known keys, so each key needs a default.
func SetDefaults(v *viper.Viper) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	cfg := &Config{}
	err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	c.ProjectName = strings.ToLower(strings.TrimSpace(c.ProjectName))
	c.Environment = strings.ToLower(strings.TrimSpace(c.Environment))
	c.Region = strings.ToLower(strings.TrimSpace(c.Region))
	if c.Namespace == "" {
		c.Namespace = c.ProjectName
	}
	if c.WorkDir == "" {
		c.WorkDir = defaultWorkDir()
	}
	if c.CommandAttempts == 0 {
		c.CommandAttempts = 1
	}
}

func (c *Config) Validate() error {
	if !nameRegex.MatchString(c.ProjectName) {
		return fmt.Errorf("project name '%s' is invalid: it has to start with a letter and "+
			"may only contain lowercase alphanumeric characters and '-'", c.ProjectName)
	}
	if !nameRegex.MatchString(c.Environment) {
		return fmt.Errorf("environment '%s' is invalid: it has to start with a letter and "+
			"may only contain lowercase alphanumeric characters and '-'", c.Environment)
	}
	if c.Region == "" {
		return fmt.Errorf("azure region cannot be empty")
	}
	if c.ReadinessTimeout <= c.ReadinessInterval {
		return fmt.Errorf("readiness timeout (%s) has to be greater than the readiness check interval (%s)",
			c.ReadinessTimeout, c.ReadinessInterval)
	}
	if c.ServicePort <= 0 || c.LocalPort <= 0 {
		return fmt.Errorf("service port and local port have to be > 0")
	}
	return nil
}

// StackName identifies the deployment (e.g. "ragapp-dev").
func (c *Config) StackName() string {
	return fmt.Sprintf("%s-%s", c.ProjectName, c.Environment)
}

// StackDir is the per-environment working directory (Terraform state, kubeconfig).
func (c *Config) StackDir() string {
	return filepath.Join(c.WorkDir, c.StackName())
}

func (c *Config) KubeconfigPath() string {
	return filepath.Join(c.StackDir(), "kubeconfig")
}

// ManifestsCacheDir stores the clones of remote manifest repositories.
func (c *Config) ManifestsCacheDir() string {
	return filepath.Join(c.WorkDir, "manifests")
}

func (c *Config) HasServicePrincipal() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.TenantID != ""
}

func defaultWorkDir() string {
	//define work dir, priority: "$HOME", "cwd()", "."
	baseDir, err := os.UserHomeDir()
	if err != nil {
		baseDir, err = os.Getwd()
		if err != nil {
			baseDir = "."
		}
	}
	return filepath.Join(baseDir, ".rag-deployer")
}
