package progress

import (
	"context"
	"fmt"
	"time"

	e "github.com/kyma-incubator/rag-deployer/pkg/error"
	"go.uber.org/zap"
	apiextclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	"k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	defaultProgressInterval = 5 * time.Second
	defaultProgressTimeout  = 5 * time.Minute

	ReadyState      State = "ready"
	TerminatedState State = "terminated"
)

type State string

type resource struct {
	kind      WatchableResource
	name      string
	namespace string
}

func (o *resource) String() string {
	return fmt.Sprintf("%s [namespace:%s|name:%s]", o.kind, o.namespace, o.name)
}

type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

func (ptc *Config) validate() error {
	if ptc.Interval < 0 {
		return fmt.Errorf("progress tracker status-check interval cannot be < 0")
	}
	if ptc.Interval == 0 {
		ptc.Interval = defaultProgressInterval
	}
	if ptc.Timeout < 0 {
		return fmt.Errorf("progress tracker timeout cannot be < 0")
	}
	if ptc.Timeout == 0 {
		ptc.Timeout = defaultProgressTimeout
	}
	if ptc.Timeout <= ptc.Interval {
		return fmt.Errorf("progress tracker will never run because configured timeout "+
			"is <= as the check interval :%.0f secs <= %.0f secs", ptc.Timeout.Seconds(), ptc.Interval.Seconds())
	}
	return nil
}

// Tracker polls the state of Kubernetes resources until all of them reached a target state.
type Tracker struct {
	objects      []*resource
	client       kubernetes.Interface
	apiextClient apiextclient.Interface
	interval     time.Duration
	timeout      time.Duration
	logger       *zap.SugaredLogger
}

// NewProgressTracker creates a tracker. The apiextensions client is only required
// if CustomResourceDefinitions are tracked and can be nil otherwise.
func NewProgressTracker(client kubernetes.Interface, apiextClient apiextclient.Interface, logger *zap.SugaredLogger, config Config) (*Tracker, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}

	return &Tracker{
		client:       client,
		apiextClient: apiextClient,
		interval:     config.Interval,
		timeout:      config.Timeout,
		logger:       logger,
	}, nil
}

func (pt *Tracker) AddResource(kind WatchableResource, namespace, name string) {
	pt.objects = append(pt.objects, &resource{
		kind:      kind,
		namespace: namespace,
		name:      name,
	})
}

func (pt *Tracker) Len() int {
	return len(pt.objects)
}

func (pt *Tracker) Watch(ctx context.Context, targetState State) error {
	if len(pt.objects) == 0 { //check if any watchable resources were added
		pt.logger.Debugf("No watchable resources defined: transition to state '%s' "+
			"will be treated as successfully finished", targetState)
		return nil
	}

	//initial status check
	inState, err := pt.allWatchableInState(ctx, targetState)
	if err != nil {
		pt.logger.Warnf("Failed to verify initial Kubernetes resource state: %v", err)
	}
	if inState {
		pt.logger.Debugf("Watchable resources are already in target state '%s': no recurring checks triggered", targetState)
		return nil
	}

	//start verifying the status in an interval
	ticker := time.NewTicker(pt.interval)
	defer ticker.Stop()
	timeout := time.After(pt.timeout)
	for {
		select {
		case <-ticker.C:
			inState, err := pt.allWatchableInState(ctx, targetState)
			if err != nil {
				pt.logger.Warnf("Failed to check progress of resource transition to state '%s' "+
					"but will retry until timeout is reached: %s", targetState, err)
			}
			if inState {
				pt.logger.Debugf("Watchable resources reached target state '%s'", targetState)
				return nil
			}
		case <-ctx.Done():
			pt.logger.Debugf("Stop checking progress of resource transition to state '%s' "+
				"because parent context got closed", targetState)
			return e.NewContextClosedError("progress tracker",
				"running resource transition to state '%s' was not completed: transition is treated as failed", targetState)
		case <-timeout:
			err := fmt.Errorf("progress tracker reached timeout (%.0f secs): "+
				"stop checking progress of resource transition to state '%s'",
				pt.timeout.Seconds(), targetState)
			pt.logger.Warn(err.Error())
			pt.logPendingResources(ctx, targetState)
			return err
		}
	}
}

func (pt *Tracker) allWatchableInState(ctx context.Context, targetState State) (bool, error) {
	for _, object := range pt.objects {
		inState, err := pt.inState(ctx, object, targetState)
		if err != nil {
			return false, err
		}
		if !inState {
			pt.logger.Debugf("Transition of %s to state '%s' is still ongoing", object, targetState)
			return false, nil
		}
	}
	pt.logger.Debugf("All resources are in state '%s'", targetState)
	return true, nil
}

func (pt *Tracker) inState(ctx context.Context, object *resource, targetState State) (bool, error) {
	switch targetState {
	case ReadyState:
		return pt.isReady(ctx, object)
	case TerminatedState:
		err := pt.get(ctx, object)
		if err == nil {
			return false, nil
		}
		if errors.IsNotFound(err) {
			return true, nil
		}
		return false, err
	default:
		return false, fmt.Errorf("state '%s' not supported", targetState)
	}
}

func (pt *Tracker) isReady(ctx context.Context, object *resource) (bool, error) {
	switch object.kind {
	case Pod:
		return isPodReady(ctx, pt.client, object)
	case Deployment:
		return isDeploymentReady(ctx, pt.client, object)
	case DaemonSet:
		return isDaemonSetReady(ctx, pt.client, object)
	case StatefulSet:
		return isStatefulSetReady(ctx, pt.client, object)
	case Job:
		return isJobReady(ctx, pt.client, object)
	case Namespace:
		return isNamespaceReady(ctx, pt.client, object)
	case CustomResourceDefinition:
		if pt.apiextClient == nil {
			return false, fmt.Errorf("tracking of %s requires an apiextensions client", object)
		}
		return isCRDReady(ctx, pt.apiextClient, object)
	default:
		return false, fmt.Errorf("kind '%s' is not watchable", object.kind)
	}
}

func (pt *Tracker) get(ctx context.Context, object *resource) error {
	var err error
	switch object.kind {
	case Pod:
		_, err = pt.client.CoreV1().Pods(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	case Deployment:
		_, err = pt.client.AppsV1().Deployments(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	case DaemonSet:
		_, err = pt.client.AppsV1().DaemonSets(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	case StatefulSet:
		_, err = pt.client.AppsV1().StatefulSets(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	case Job:
		_, err = pt.client.BatchV1().Jobs(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	case Namespace:
		_, err = pt.client.CoreV1().Namespaces().Get(ctx, object.name, metav1.GetOptions{})
	case CustomResourceDefinition:
		if pt.apiextClient == nil {
			return fmt.Errorf("tracking of %s requires an apiextensions client", object)
		}
		_, err = pt.apiextClient.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, object.name, metav1.GetOptions{})
	default:
		err = fmt.Errorf("kind '%s' is not watchable", object.kind)
	}
	return err
}

func (pt *Tracker) logPendingResources(ctx context.Context, targetState State) {
	for _, object := range pt.objects {
		inState, err := pt.inState(ctx, object, targetState)
		if err != nil {
			pt.logger.Warnf("Tracker stopped checking %s: failed to get resource: %s", object, err)
			continue
		}
		if !inState {
			pt.logger.Warnf("Tracker stopped checking %s: resource did not reach state '%s'", object, targetState)
		}
	}
}
