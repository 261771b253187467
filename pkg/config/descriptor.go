package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/structs"
	"github.com/iancoleman/strcase"
)

const (
	maxAcrNameLength      = 50
	maxKeyVaultNameLength = 24
	maxStorageNameLength  = 24
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// Descriptor describes the cloud resources of a deployment. It is passed to the
// infrastructure engine and not owned by this tool.
type Descriptor struct {
	ProjectName        string
	Environment        string
	Location           string
	ResourceGroupName  string
	AksClusterName     string
	AksNodeVmSize      string
	AksNodeCount       int
	AcrName            string
	AcrSku             string
	KeyVaultName       string
	StorageAccountName string
	StorageContainer   string
	SearchServiceName  string
	SearchSku          string
	OpenaiAccountName  string
}

func (c *Config) Descriptor() *Descriptor {
	compact := nonAlphanumeric.ReplaceAllString(c.ProjectName+c.Environment, "")
	return &Descriptor{
		ProjectName:        c.ProjectName,
		Environment:        c.Environment,
		Location:           c.Region,
		ResourceGroupName:  fmt.Sprintf("rg-%s", c.StackName()),
		AksClusterName:     fmt.Sprintf("aks-%s", c.StackName()),
		AksNodeVmSize:      c.AksNodeVMSize,
		AksNodeCount:       c.AksNodeCount,
		AcrName:            truncate("acr"+compact, maxAcrNameLength),
		AcrSku:             c.AcrSku,
		KeyVaultName:       strings.TrimSuffix(truncate(fmt.Sprintf("kv-%s", c.StackName()), maxKeyVaultNameLength), "-"),
		StorageAccountName: truncate("st"+compact, maxStorageNameLength),
		StorageContainer:   "pdf-documents",
		SearchServiceName:  fmt.Sprintf("srch-%s", c.StackName()),
		SearchSku:          c.SearchSku,
		OpenaiAccountName:  fmt.Sprintf("oai-%s", c.StackName()),
	}
}

// Variables converts the descriptor into snake_cased infrastructure variables
// (e.g. AksClusterName becomes aks_cluster_name).
func (d *Descriptor) Variables() map[string]string {
	result := make(map[string]string)
	for key, value := range structs.Map(d) {
		result[strcase.ToSnake(key)] = fmt.Sprintf("%v", value)
	}
	return result
}

// VarArgs renders the variables as sorted '-var key=value' arguments.
func (d *Descriptor) VarArgs() []string {
	vars := d.Variables()
	keys := make([]string, 0, len(vars))
	for key := range vars {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var args []string
	for _, key := range keys {
		args = append(args, "-var", fmt.Sprintf("%s=%s", key, vars[key]))
	}
	return args
}

func truncate(value string, max int) string {
	if len(value) > max {
		return value[:max]
	}
	return value
}
