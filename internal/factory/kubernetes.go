package factory

import (
	"fmt"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/purpleteam-labs/campaign-orchestrator/internal/config"
)

// CreateKubernetesClient uses the in cluster configuration unless a kubeconfig is set.
func CreateKubernetesClient(conf config.AgentsKubernetes) (kubernetes.Interface, error) {
	var (
		restConfig *rest.Config
		err        error
	)

	if conf.Kubeconfig == "" {
		restConfig, err = rest.InClusterConfig()
	} else {
		restConfig, err = clientcmd.BuildConfigFromFlags("", conf.Kubeconfig)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load kubernetes config: %w", err)
	}

	ret, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create kubernetes client: %w", err)
	}

	return ret, nil
}
