package kubernetes

import (
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
)

const (
	ManagedByLabel   = "app.kubernetes.io/managed-by"
	PartOfLabel      = "app.kubernetes.io/part-of"
	EnvironmentLabel = "rag-deployer.io/environment"
	RunIDAnnotation  = "rag-deployer.io/run-id"
	NameLabel        = "name"
	ManagedByValue   = "rag-deployer"
)

// ResourceInterceptor modifies a resource before it gets applied to the cluster.
type ResourceInterceptor interface {
	Intercept(u *unstructured.Unstructured) error
}

type LabelsInterceptor struct {
	Project     string
	Environment string
}

func (l *LabelsInterceptor) Intercept(u *unstructured.Unstructured) error {
	labels := u.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[ManagedByLabel] = ManagedByValue
	if l.Project != "" {
		labels[PartOfLabel] = l.Project
	}
	if l.Environment != "" {
		labels[EnvironmentLabel] = l.Environment
	}
	u.SetLabels(labels)
	return nil
}

type AnnotationsInterceptor struct {
	RunID string
}

func (a *AnnotationsInterceptor) Intercept(u *unstructured.Unstructured) error {
	if a.RunID == "" {
		return nil
	}
	annotations := u.GetAnnotations()
	if annotations == nil {
		annotations = make(map[string]string)
	}
	annotations[RunIDAnnotation] = a.RunID
	u.SetAnnotations(annotations)
	return nil
}

// NamespaceInterceptor adds the 'name' label to namespace resources which is required by namespace selectors.
type NamespaceInterceptor struct {
}

func (n *NamespaceInterceptor) Intercept(u *unstructured.Unstructured) error {
	if u.GetKind() != "Namespace" {
		return nil
	}
	labels := u.GetLabels()
	if labels == nil {
		labels = make(map[string]string)
	}
	labels[NameLabel] = u.GetName()
	u.SetLabels(labels)
	return nil
}
