// Package kube holds the cluster clients and the apply/get/delete interface used
// in place of shelling out to kubectl.
package kube

import (
	"fmt"

	"go.uber.org/zap"
	"k8s.io/client-go/discovery/cached/memory"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/restmapper"
	"k8s.io/client-go/tools/clientcmd"
)

// Clients bundles the typed and dynamic clients of one cluster.
type Clients struct {
	Typed   kubernetes.Interface
	Dynamic dynamic.Interface
	Applier *DynamicApplier
}

func restConfig(logger *zap.Logger, kubeconfig string) (*rest.Config, error) {
	// Use in cluster config
	if kubeconfig == "" {
		logger.Info("Connecting using in cluster configuration")
		config, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("connecting to cluster: %w", err)
		}
		return config, nil
	}

	logger.Info("Connecting using kubeconfig", zap.String("path", kubeconfig))
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("connecting to cluster: %w", err)
	}
	return config, nil
}

// NewClients connects to the cluster from kubeconfig, or from the in-cluster
// service account when kubeconfig is empty.
func NewClients(logger *zap.Logger, kubeconfig string) (*Clients, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config, err := restConfig(logger, kubeconfig)
	if err != nil {
		return nil, err
	}

	typed, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating clientset: %w", err)
	}
	dyn, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("creating dynamic client: %w", err)
	}
	mapper := restmapper.NewDeferredDiscoveryRESTMapper(memory.NewMemCacheClient(typed.Discovery()))

	return &Clients{
		Typed:   typed,
		Dynamic: dyn,
		Applier: NewDynamicApplier(dyn, mapper, logger),
	}, nil
}
