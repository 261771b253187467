package config

import (
	"os"
	"strings"

	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/magiconair/properties"
	"github.com/pkg/errors"
)

// LoadDotEnv reads KEY=VALUE pairs from a .env file and exports each key which is not
// already defined in the environment. A missing file is not an error.
// It returns the keys which were exported.
func LoadDotEnv(path string) ([]string, error) {
	if !file.Exists(path) {
		return nil, nil
	}
	props, err := properties.LoadFile(path, properties.UTF8)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read env file '%s'", path)
	}

	var exported []string
	for _, key := range props.Keys() {
		envKey := strings.TrimSpace(key)
		if _, defined := os.LookupEnv(envKey); defined {
			continue
		}
		if err := os.Setenv(envKey, unquote(props.GetString(key, ""))); err != nil {
			return exported, errors.Wrapf(err, "failed to export variable '%s'", envKey)
		}
		exported = append(exported, envKey)
	}
	return exported, nil
}

func unquote(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
