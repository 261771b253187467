package infra

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	OutputAcrLoginServer    = "acr_login_server"
	OutputAksClusterName    = "aks_cluster_name"
	OutputResourceGroupName = "resource_group_name"
	OutputKeyVaultName      = "key_vault_name"
	OutputTenantID          = "tenant_id"
)

// Outputs are the Terraform outputs converted to strings. Non-string values are kept in their JSON notation.
type Outputs map[string]string

type outputValue struct {
	Value     json.RawMessage `json:"value"`
	Sensitive bool            `json:"sensitive"`
}

func ParseOutputs(data []byte) (Outputs, error) {
	raw := make(map[string]outputValue)
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "failed to parse terraform outputs")
	}
	outputs := make(Outputs, len(raw))
	for name, output := range raw {
		var str string
		if err := json.Unmarshal(output.Value, &str); err == nil {
			outputs[name] = str
			continue
		}
		outputs[name] = string(output.Value)
	}
	return outputs, nil
}

func (o Outputs) AcrLoginServer() string {
	return o[OutputAcrLoginServer]
}

func (o Outputs) AksClusterName() string {
	return o[OutputAksClusterName]
}

func (o Outputs) ResourceGroupName() string {
	return o[OutputResourceGroupName]
}

func (o Outputs) KeyVaultName() string {
	return o[OutputKeyVaultName]
}

func (o Outputs) TenantID() string {
	return o[OutputTenantID]
}

// Require returns an error listing all given outputs which are missing or empty.
func (o Outputs) Require(names ...string) error {
	var missing []string
	for _, name := range names {
		if o[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("terraform outputs missing: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Variables returns the outputs as upper-cased placeholder variables (e.g. ACR_LOGIN_SERVER).
func (o Outputs) Variables() map[string]string {
	vars := make(map[string]string, len(o))
	for name, value := range o {
		vars[strings.ToUpper(name)] = value
	}
	return vars
}

func (o Outputs) Names() []string {
	names := make([]string, 0, len(o))
	for name := range o {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
