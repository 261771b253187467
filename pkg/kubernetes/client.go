package kubernetes

import (
	"context"
	"fmt"

	e "github.com/kyma-incubator/rag-deployer/pkg/error"
	"github.com/kyma-incubator/rag-deployer/pkg/kubernetes/progress"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	apiextclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	k8serr "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/discovery"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
)

const (
	FieldManager     = "rag-deployer"
	defaultNamespace = "default"
)

// RESTMapper is a REST mapper which can drop its cached discovery data.
// It is reset when a kind is unknown, e.g. because a CRD was just installed.
type RESTMapper interface {
	meta.RESTMapper
	Reset()
}

type Client struct {
	dynamicClient dynamic.Interface
	clientset     kubernetes.Interface
	apiextClient  apiextclient.Interface
	mapper        RESTMapper
	logger        *zap.SugaredLogger
}

// NewClient creates a client for the cluster defined in the kubeconfig file.
func NewClient(kubeconfigPath string, logger *zap.SugaredLogger) (*Client, error) {
	config, err := NewRestConfigBuilder().WithFile(kubeconfigPath).Build()
	if err != nil {
		return nil, err
	}
	config.WarningHandler = &loggingWarningHandler{logger: logger}
	return newForConfig(config, logger)
}

func newForConfig(config *rest.Config, logger *zap.SugaredLogger) (*Client, error) {
	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create dynamic Kubernetes client")
	}
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Kubernetes clientset")
	}
	apiext, err := apiextclient.NewForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create apiextensions clientset")
	}
	dc, err := discovery.NewDiscoveryClientForConfig(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create discovery client")
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(dc))
	return NewClientWith(dynamicClient, clientset, apiext, mapper, logger), nil
}

// NewClientWith assembles a client from already created Kubernetes clients.
func NewClientWith(dynamicClient dynamic.Interface, clientset kubernetes.Interface, apiext apiextclient.Interface,
	mapper RESTMapper, logger *zap.SugaredLogger) *Client {
	return &Client{
		dynamicClient: dynamicClient,
		clientset:     clientset,
		apiextClient:  apiext,
		mapper:        mapper,
		logger:        logger,
	}
}

func (c *Client) Clientset() kubernetes.Interface {
	return c.clientset
}

func (c *Client) ApiextClient() apiextclient.Interface {
	return c.apiextClient
}

// Apply sends all resources via server-side apply to the cluster. Namespaced resources without
// namespace are placed into the given namespace. The resources are applied in the given order and
// the first failure stops the processing.
func (c *Client) Apply(ctx context.Context, resources []*unstructured.Unstructured, namespace string,
	interceptors ...ResourceInterceptor) ([]*Resource, error) {
	var applied []*Resource
	for _, u := range resources {
		for _, interceptor := range interceptors {
			if err := interceptor.Intercept(u); err != nil {
				return applied, errors.Wrapf(err, "failed to intercept %s '%s'", u.GetKind(), u.GetName())
			}
		}
		resource, err := c.applyResource(ctx, u, namespace)
		if err != nil {
			return applied, err
		}
		c.logger.Debugf("Applied %s", resource)
		applied = append(applied, resource)
	}
	return applied, nil
}

func (c *Client) applyResource(ctx context.Context, u *unstructured.Unstructured, namespace string) (*Resource, error) {
	select {
	case <-ctx.Done():
		return nil, e.NewContextClosedError("kubernetes client",
			"stopped applying %s '%s' because context got closed", u.GetKind(), u.GetName())
	default:
	}

	mapping, err := c.restMapping(u)
	if err != nil {
		return nil, err
	}

	var resourceClient dynamic.ResourceInterface
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		if u.GetNamespace() == "" {
			if namespace == "" {
				namespace = defaultNamespace
			}
			u.SetNamespace(namespace)
		}
		resourceClient = c.dynamicClient.Resource(mapping.Resource).Namespace(u.GetNamespace())
	} else {
		u.SetNamespace("")
		resourceClient = c.dynamicClient.Resource(mapping.Resource)
	}

	data, err := runtime.Encode(unstructured.UnstructuredJSONScheme, u)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s '%s'", u.GetKind(), u.GetName())
	}

	force := true
	_, err = resourceClient.Patch(ctx, u.GetName(), types.ApplyPatchType, data, metav1.PatchOptions{
		FieldManager: FieldManager,
		Force:        &force,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to apply %s '%s' (namespace: '%s')", u.GetKind(), u.GetName(), u.GetNamespace())
	}

	return &Resource{
		Kind:      u.GetKind(),
		Name:      u.GetName(),
		Namespace: u.GetNamespace(),
	}, nil
}

func (c *Client) restMapping(u *unstructured.Unstructured) (*meta.RESTMapping, error) {
	gvk := u.GroupVersionKind()
	if gvk.Kind == "" || gvk.Version == "" {
		return nil, fmt.Errorf("resource '%s' has no apiVersion or kind", u.GetName())
	}
	mapping, err := c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if meta.IsNoMatchError(err) {
		c.logger.Debugf("Kind '%s' unknown: refreshing discovery information", gvk)
		c.mapper.Reset()
		mapping, err = c.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve REST mapping of kind '%s'", gvk)
	}
	return mapping, nil
}

// DeleteNamespace deletes the namespace and waits until it is gone. A missing namespace is not an error.
func (c *Client) DeleteNamespace(ctx context.Context, namespace string, tracking progress.Config) error {
	policy := metav1.DeletePropagationForeground
	err := c.clientset.CoreV1().Namespaces().Delete(ctx, namespace, metav1.DeleteOptions{PropagationPolicy: &policy})
	if k8serr.IsNotFound(err) {
		c.logger.Infof("Namespace '%s' does not exist: nothing to delete", namespace)
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "failed to delete namespace '%s'", namespace)
	}

	tracker, err := c.ProgressTracker(tracking)
	if err != nil {
		return err
	}
	tracker.AddResource(progress.Namespace, "", namespace)
	return tracker.Watch(ctx, progress.TerminatedState)
}

func (c *Client) ProgressTracker(config progress.Config) (*progress.Tracker, error) {
	return progress.NewProgressTracker(c.clientset, c.apiextClient, c.logger, config)
}

// TrackResources registers all watchable resources at the tracker and returns how many were added.
func TrackResources(tracker *progress.Tracker, resources []*Resource) int {
	var added int
	for _, resource := range resources {
		watchable, err := progress.NewWatchableResource(resource.Kind)
		if err != nil {
			continue
		}
		tracker.AddResource(watchable, resource.Namespace, resource.Name)
		added++
	}
	return added
}

type loggingWarningHandler struct {
	logger *zap.SugaredLogger
}

// HandleWarningHeader logs code 299 warnings received from the API server.
func (h *loggingWarningHandler) HandleWarningHeader(code int, _ string, text string) {
	if h.logger == nil || code != 299 || len(text) == 0 {
		return
	}
	h.logger.Warn(text)
}
