// Package kube reads and updates Deployments on a Kubernetes cluster.
package kube

import (
	"fmt"
	"path/filepath"

	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
	"k8s.io/client-go/util/homedir"
)

type Client struct {
	cs kubernetes.Interface
}

// Options selects the cluster. With nothing set, the in-cluster config is
// tried first and ~/.kube/config second.
type Options struct {
	Kubeconfig string
	Context    string
}

func NewClient(opts Options) (*Client, error) {
	config, err := restConfig(opts)
	if err != nil {
		return nil, err
	}

	cs, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("cannot create k8s client: %w", err)
	}

	return &Client{cs: cs}, nil
}

// NewForClientset wraps an existing clientset.
func NewForClientset(cs kubernetes.Interface) *Client {
	return &Client{cs: cs}
}

func restConfig(opts Options) (*rest.Config, error) {
	if opts.Kubeconfig == "" && opts.Context == "" {
		if config, err := rest.InClusterConfig(); err == nil {
			return config, nil
		}
	}

	kubeconfig := opts.Kubeconfig
	if kubeconfig == "" {
		kubeconfig = filepath.Join(homedir.HomeDir(), ".kube", "config")
	}
	rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig}
	overrides := &clientcmd.ConfigOverrides{CurrentContext: opts.Context}

	config, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("cannot create k8s config: %w", err)
	}
	return config, nil
}
