package progress

import (
	"context"

	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apiextv1 "k8s.io/apiextensions-apiserver/pkg/apis/apiextensions/v1"
	apiextclient "k8s.io/apiextensions-apiserver/pkg/client/clientset/clientset"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/kubectl/pkg/util/podutils"
)

// isDeploymentReady follows the logic of 'kubectl rollout status': the latest generation was observed
// and all replicas were updated and are available.
func isDeploymentReady(ctx context.Context, client kubernetes.Interface, object *resource) (bool, error) {
	deployment, err := client.AppsV1().Deployments(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	if deployment.Generation > deployment.Status.ObservedGeneration {
		return false, nil
	}

	replicas := int32(1)
	if deployment.Spec.Replicas != nil {
		replicas = *deployment.Spec.Replicas
	}
	status := deployment.Status
	return status.UpdatedReplicas >= replicas &&
		status.Replicas == status.UpdatedReplicas &&
		status.AvailableReplicas >= replicas, nil
}

// see: https://kubernetes.io/docs/concepts/workloads/controllers/statefulset/#partitions
func isStatefulSetReady(ctx context.Context, client kubernetes.Interface, object *resource) (bool, error) {
	statefulSet, err := client.AppsV1().StatefulSets(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	if err != nil {
		return false, err
	}

	var partition, replicas = 0, 1
	if statefulSet.Spec.UpdateStrategy.RollingUpdate != nil && statefulSet.Spec.UpdateStrategy.RollingUpdate.Partition != nil {
		partition = int(*statefulSet.Spec.UpdateStrategy.RollingUpdate.Partition)
	}
	if statefulSet.Spec.Replicas != nil {
		replicas = int(*statefulSet.Spec.Replicas)
	}

	expectedReplicas := replicas - partition
	if int(statefulSet.Status.UpdatedReplicas) != expectedReplicas {
		return false, nil
	}
	return int(statefulSet.Status.ReadyReplicas) == replicas, nil
}

func isPodReady(ctx context.Context, client kubernetes.Interface, object *resource) (bool, error) {
	pod, err := client.CoreV1().Pods(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	if pod.Status.Phase != corev1.PodRunning {
		return false, nil
	}
	//deletion timestamp determines whether pod is terminating or running (nil == running)
	return podutils.IsPodReady(pod) && pod.ObjectMeta.DeletionTimestamp == nil, nil
}

func isDaemonSetReady(ctx context.Context, client kubernetes.Interface, object *resource) (bool, error) {
	daemonSet, err := client.AppsV1().DaemonSets(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	status := daemonSet.Status
	if status.UpdatedNumberScheduled != status.DesiredNumberScheduled {
		return false, nil
	}
	return status.NumberReady >= status.DesiredNumberScheduled, nil
}

func isJobReady(ctx context.Context, client kubernetes.Interface, object *resource) (bool, error) {
	job, err := client.BatchV1().Jobs(object.namespace).Get(ctx, object.name, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	for _, condition := range job.Status.Conditions {
		if condition.Type == batchv1.JobComplete && condition.Status == corev1.ConditionTrue {
			return true, nil
		}
	}
	return false, nil
}

func isNamespaceReady(ctx context.Context, client kubernetes.Interface, object *resource) (bool, error) {
	namespace, err := client.CoreV1().Namespaces().Get(ctx, object.name, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	return namespace.Status.Phase == corev1.NamespaceActive, nil
}

func isCRDReady(ctx context.Context, client apiextclient.Interface, object *resource) (bool, error) {
	crd, err := client.ApiextensionsV1().CustomResourceDefinitions().Get(ctx, object.name, metav1.GetOptions{})
	if err != nil {
		return false, err
	}
	for _, condition := range crd.Status.Conditions {
		if condition.Type == apiextv1.Established && condition.Status == apiextv1.ConditionTrue {
			return true, nil
		}
	}
	return false, nil
}
