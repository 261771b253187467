package kubernetes

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	file "github.com/kyma-incubator/rag-deployer/pkg/files"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

// IndexFile can be placed into the manifests directory to define the files and their apply order.
const IndexFile = "manifests.yaml"

// DefaultManifestFiles is the apply order used if neither an explicit list nor an index file exists.
// Dependencies are applied first (namespace before its content, secrets before the workloads consuming them).
var DefaultManifestFiles = []string{
	"namespace.yaml",
	"serviceaccount.yaml",
	"secretproviderclass.yaml",
	"configmap.yaml",
	"deployment.yaml",
	"service.yaml",
	"ingress.yaml",
	"hpa.yaml",
}

var placeholderRegex = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

type Manifest struct {
	File      string
	Resources []*unstructured.Unstructured
}

type manifestIndex struct {
	Files []string `yaml:"files"`
}

// ManifestLoader reads the manifests of a directory in a fixed order and renders their placeholders.
type ManifestLoader struct {
	Dir       string
	Files     []string
	Variables map[string]string
	Logger    *zap.SugaredLogger
}

// Load returns the manifests in apply order. Files listed explicitly or in the index file are mandatory,
// files of the default order are optional and skipped if missing.
func (l *ManifestLoader) Load() ([]*Manifest, error) {
	files, strict, err := l.resolveFiles()
	if err != nil {
		return nil, err
	}

	var manifests []*Manifest
	for _, name := range files {
		path := filepath.Join(l.Dir, name)
		if !file.Exists(path) {
			if strict {
				return nil, fmt.Errorf("manifest file '%s' not found", path)
			}
			l.Logger.Warnf("Optional manifest file '%s' not found: skipping it", path)
			continue
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read manifest file '%s'", path)
		}
		rendered, err := Render(string(content), l.Variables)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to render manifest file '%s'", path)
		}
		resources, err := ToUnstructured([]byte(rendered))
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse manifest file '%s'", path)
		}
		manifests = append(manifests, &Manifest{File: name, Resources: resources})
	}

	if len(manifests) == 0 {
		return nil, fmt.Errorf("no Kubernetes manifests found in directory '%s'", l.Dir)
	}
	return manifests, nil
}

func (l *ManifestLoader) resolveFiles() ([]string, bool, error) {
	if len(l.Files) > 0 {
		return l.Files, true, nil
	}
	indexPath := filepath.Join(l.Dir, IndexFile)
	if !file.Exists(indexPath) {
		return DefaultManifestFiles, false, nil
	}
	data, err := os.ReadFile(indexPath)
	if err != nil {
		return nil, false, errors.Wrapf(err, "failed to read manifest index '%s'", indexPath)
	}
	index := &manifestIndex{}
	if err := yaml.Unmarshal(data, index); err != nil {
		return nil, false, errors.Wrapf(err, "failed to parse manifest index '%s'", indexPath)
	}
	if len(index.Files) == 0 {
		return nil, false, fmt.Errorf("manifest index '%s' does not list any files", indexPath)
	}
	return index.Files, true, nil
}

// Render replaces all ${NAME} placeholders with the given variables. Placeholders
// without a value are reported as an error.
func Render(content string, vars map[string]string) (string, error) {
	missing := make(map[string]bool)
	result := placeholderRegex.ReplaceAllStringFunc(content, func(placeholder string) string {
		name := placeholderRegex.FindStringSubmatch(placeholder)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		missing[name] = true
		return placeholder
	})
	if len(missing) > 0 {
		var names []string
		for name := range missing {
			names = append(names, name)
		}
		sort.Strings(names)
		return "", fmt.Errorf("unresolved placeholders: %s", strings.Join(names, ", "))
	}
	return result, nil
}
