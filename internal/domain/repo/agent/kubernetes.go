package agent

import (
	"context"
	"fmt"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/domain/entity"
)

const (
	pawLabel      = "orchestrator.purpleteam-labs.io/paw"
	groupLabel    = "orchestrator.purpleteam-labs.io/group"
	osNodeLabel   = "kubernetes.io/os"
	defaultGroup  = "red"
	tagsSeparator = ","
)

// KubernetesRegistry considers every pod matching the label selector as an agent.
type KubernetesRegistry struct {
	client         kubernetes.Interface
	namespace      string
	labelSelector  string
	tagsAnnotation string
}

func NewKubernetesRegistry(client kubernetes.Interface, namespace, labelSelector, tagsAnnotation string) KubernetesRegistry {
	return KubernetesRegistry{
		client:         client,
		namespace:      namespace,
		labelSelector:  labelSelector,
		tagsAnnotation: tagsAnnotation,
	}
}

func (r KubernetesRegistry) ListAgents(ctx context.Context) ([]entity.Agent, error) {
	pods, err := r.client.CoreV1().Pods(r.namespace).List(ctx, metav1.ListOptions{
		LabelSelector: r.labelSelector,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pods in %s: %w", r.namespace, err)
	}

	ret := make([]entity.Agent, 0, len(pods.Items))

	for _, pod := range pods.Items {
		if pod.Status.Phase != corev1.PodRunning {
			continue
		}

		ret = append(ret, r.podToAgent(pod))
	}

	return ret, nil
}

func (r KubernetesRegistry) podToAgent(pod corev1.Pod) entity.Agent {
	ret := entity.Agent{
		Paw:      pod.Name,
		Hostname: pod.Name,
		Platform: "linux",
		Group:    defaultGroup,
	}

	if paw := pod.Labels[pawLabel]; paw != "" {
		ret.Paw = paw
	}

	if group := pod.Labels[groupLabel]; group != "" {
		ret.Group = group
	}

	if platform := pod.Spec.NodeSelector[osNodeLabel]; platform != "" {
		ret.Platform = platform
	}

	for _, tag := range strings.Split(pod.Annotations[r.tagsAnnotation], tagsSeparator) {
		tag = strings.TrimSpace(tag)
		if tag != "" {
			ret.Tags = append(ret.Tags, tag)
		}
	}

	if pod.Status.StartTime != nil {
		ret.LastSeen = pod.Status.StartTime.Time
	}

	for _, condition := range pod.Status.Conditions {
		if condition.Type == corev1.PodReady && condition.LastTransitionTime.After(ret.LastSeen) {
			ret.LastSeen = condition.LastTransitionTime.Time
		}
	}

	return ret
}
