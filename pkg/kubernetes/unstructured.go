package kubernetes

import (
	"bufio"
	"bytes"
	"io"

	"github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	yamlToJson "sigs.k8s.io/yaml"
)

// ToUnstructured converts a (multi-document) YAML manifest into unstructured Kubernetes objects.
// Empty documents (e.g. only comments) are skipped.
func ToUnstructured(manifest []byte) ([]*unstructured.Unstructured, error) {
	var result []*unstructured.Unstructured
	multidocReader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(manifest)))

	for {
		yamlData, err := multidocReader.Read()
		if err != nil {
			if err == io.EOF {
				return result, nil
			}
			return nil, errors.Wrap(err, "failed to read yaml data")
		}

		//convert YAML to JSON
		jsonData, err := yamlToJson.YAMLToJSON(yamlData)
		if err != nil {
			return nil, errors.Wrap(err, "failed to convert yaml document to json")
		}
		if string(jsonData) == "null" {
			//YAML didn't contain any valuable JSON data (e.g. just comments)
			continue
		}

		unstruct, err := newUnstructured(jsonData)
		if err != nil {
			return nil, err
		}
		result = append(result, unstruct)
	}
}

// newUnstructured converts JSON data into an unstructured.Unstructured object.
func newUnstructured(b []byte) (*unstructured.Unstructured, error) {
	obj, _, err := unstructured.UnstructuredJSONScheme.Decode(b, nil, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to decode Kubernetes resource")
	}
	m, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, err
	}
	return &unstructured.Unstructured{
		Object: m,
	}, nil
}
