// Package providers stores provider configuration in ConfigMaps and Secrets.
package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
)

const (
	LabelSubmodule  = "ckan-cloud/provider-submodule"
	LabelProviderID = "ckan-cloud/provider-id"

	// providersConfigMap records the active provider of every submodule
	providersConfigMap = "ckan-cloud-providers"
)

// ErrConfigNotFound is returned for a required key that is not set.
var ErrConfigNotFound = errors.New("provider config not found")

// ProviderContext identifies one provider implementation of a submodule,
// e.g. {Submodule: "routers", ProviderID: "traefik"}.
type ProviderContext struct {
	Submodule  string
	ProviderID string
}

// ResourceName returns the cluster resource name owned by the provider.
func (pc ProviderContext) ResourceName(suffix string) string {
	name := fmt.Sprintf("ckan-cloud-provider-%s-%s", pc.Submodule, pc.ProviderID)
	if suffix != "" {
		name += "-" + suffix
	}
	return strings.ToLower(name)
}

// Labels returns the labels put on every resource owned by the provider.
func (pc ProviderContext) Labels() map[string]string {
	return map[string]string{
		LabelSubmodule:  pc.Submodule,
		LabelProviderID: pc.ProviderID,
	}
}

// Options select where a config value lives and how a missing value is handled.
type Options struct {
	Secret   bool
	Suffix   string
	Required bool
	Default  string
}

// Store reads and writes provider configuration.
type Store struct {
	client    kubernetes.Interface
	namespace string
	logger    *zap.Logger
}

// NewStore creates a Store backed by resources in namespace.
func NewStore(client kubernetes.Interface, namespace string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// Namespace returns the namespace holding the provider resources.
func (s *Store) Namespace() string {
	return s.namespace
}

// Get returns a single config value.
func (s *Store) Get(ctx context.Context, pc ProviderContext, key string, opts Options) (string, error) {
	values, err := s.GetAll(ctx, pc, opts)
	if err != nil {
		return "", err
	}
	value, ok := values[key]
	if !ok || value == "" {
		if opts.Required {
			return "", fmt.Errorf("%s/%s %s: %w", pc.Submodule, pc.ProviderID, key, ErrConfigNotFound)
		}
		return opts.Default, nil
	}
	return value, nil
}

// GetAll returns every config value of the provider. A missing resource yields an empty map.
func (s *Store) GetAll(ctx context.Context, pc ProviderContext, opts Options) (map[string]string, error) {
	name := pc.ResourceName(opts.Suffix)

	if opts.Secret {
		secret, err := s.client.CoreV1().Secrets(s.namespace).Get(ctx, name, metav1.GetOptions{})
		if apierrors.IsNotFound(err) {
			return map[string]string{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("getting secret %s: %w", name, err)
		}
		values := make(map[string]string, len(secret.Data))
		for k, v := range secret.Data {
			values[k] = string(v)
		}
		for k, v := range secret.StringData {
			values[k] = v
		}
		return values, nil
	}

	configMap, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting configmap %s: %w", name, err)
	}
	values := make(map[string]string, len(configMap.Data))
	for k, v := range configMap.Data {
		values[k] = v
	}
	return values, nil
}

// Set merges values into the provider config, creating the resource if needed.
func (s *Store) Set(ctx context.Context, pc ProviderContext, values map[string]string, opts Options) error {
	name := pc.ResourceName(opts.Suffix)
	s.logger.Debug("Setting provider config",
		zap.String("submodule", pc.Submodule),
		zap.String("provider", pc.ProviderID),
		zap.String("resource", name),
		zap.Bool("secret", opts.Secret),
		zap.Int("keys", len(values)),
	)

	if opts.Secret {
		return s.setSecret(ctx, pc, name, values)
	}
	return s.setConfigMap(ctx, name, pc.Labels(), values)
}

func (s *Store) setSecret(ctx context.Context, pc ProviderContext, name string, values map[string]string) error {
	secrets := s.client.CoreV1().Secrets(s.namespace)
	secret, err := secrets.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		secret = &corev1.Secret{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: s.namespace, Labels: pc.Labels()},
			Type:       corev1.SecretTypeOpaque,
			Data:       map[string][]byte{},
		}
		for k, v := range values {
			secret.Data[k] = []byte(v)
		}
		if _, err := secrets.Create(ctx, secret, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("creating secret %s: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting secret %s: %w", name, err)
	}

	if secret.Data == nil {
		secret.Data = map[string][]byte{}
	}
	for k, v := range values {
		secret.Data[k] = []byte(v)
	}
	if _, err := secrets.Update(ctx, secret, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("updating secret %s: %w", name, err)
	}
	return nil
}

func (s *Store) setConfigMap(ctx context.Context, name string, labels map[string]string, values map[string]string) error {
	configMaps := s.client.CoreV1().ConfigMaps(s.namespace)
	configMap, err := configMaps.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		configMap = &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: s.namespace, Labels: labels},
			Data:       values,
		}
		if _, err := configMaps.Create(ctx, configMap, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("creating configmap %s: %w", name, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting configmap %s: %w", name, err)
	}

	if configMap.Data == nil {
		configMap.Data = map[string]string{}
	}
	for k, v := range values {
		configMap.Data[k] = v
	}
	if _, err := configMaps.Update(ctx, configMap, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("updating configmap %s: %w", name, err)
	}
	return nil
}

// SetProvider records pc as the active provider of its submodule.
func (s *Store) SetProvider(ctx context.Context, pc ProviderContext) error {
	s.logger.Info("Setting provider",
		zap.String("submodule", pc.Submodule),
		zap.String("provider", pc.ProviderID),
	)
	return s.setConfigMap(ctx, providersConfigMap, nil, map[string]string{pc.Submodule: pc.ProviderID})
}

// GetProvider returns the active provider of submodule, or "" when none is set.
func (s *Store) GetProvider(ctx context.Context, submodule string) (string, error) {
	configMap, err := s.client.CoreV1().ConfigMaps(s.namespace).Get(ctx, providersConfigMap, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("getting configmap %s: %w", providersConfigMap, err)
	}
	return configMap.Data[submodule], nil
}
