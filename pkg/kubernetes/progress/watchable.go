package progress

import (
	"fmt"
	"strings"
)

const (
	Deployment               WatchableResource = "Deployment"
	Pod                      WatchableResource = "Pod"
	DaemonSet                WatchableResource = "DaemonSet"
	StatefulSet              WatchableResource = "StatefulSet"
	Job                      WatchableResource = "Job"
	Namespace                WatchableResource = "Namespace"
	CustomResourceDefinition WatchableResource = "CustomResourceDefinition"
)

type WatchableResource string

func NewWatchableResource(kind string) (WatchableResource, error) {
	for _, watchable := range []WatchableResource{Deployment, Pod, DaemonSet, StatefulSet, Job, Namespace, CustomResourceDefinition} {
		if strings.EqualFold(kind, string(watchable)) {
			return watchable, nil
		}
	}
	return "", fmt.Errorf("WatchableResource '%s' is not supported", kind)
}

// IsWatchable returns true if the tracker is able to verify the state of the given kind.
func IsWatchable(kind string) bool {
	_, err := NewWatchableResource(kind)
	return err == nil
}
