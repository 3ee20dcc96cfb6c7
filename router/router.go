// Package router generates the traefik configuration of a router from its routes
// and persists the result.
package router

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"sigs.k8s.io/yaml"

	"github.com/ckan-cloud/ckan-cloud-operator/config"
	"github.com/ckan-cloud/ckan-cloud-operator/providers"
	"github.com/ckan-cloud/ckan-cloud-operator/routes"
	"github.com/ckan-cloud/ckan-cloud-operator/traefik"
)

const (
	StaticConfigKey  = "traefik.yaml"
	DynamicConfigKey = "dynamic.yaml"

	DefaultDynamicConfigFile = "/etc/traefik/dynamic.yaml"
)

// TraefikProvider is the provider config holding the routing policy.
var TraefikProvider = providers.ProviderContext{Submodule: "routers", ProviderID: "traefik"}

// PolicyFromStore reads the routing policy of a router from the traefik provider config.
// An empty routerName reads the shared config.
func PolicyFromStore(ctx context.Context, store *providers.Store, routerName string) (traefik.RoutingPolicy, error) {
	values, err := store.GetAll(ctx, TraefikProvider, providers.Options{Suffix: routerName})
	if err != nil {
		return traefik.RoutingPolicy{}, err
	}

	policy := traefik.RoutingPolicy{
		DNSProvider:           traefik.DNSProvider(values["dns-provider"]),
		LetsencryptEmail:      values["letsencrypt-cloudflare-email"],
		ACMEEmail:             values["acme-email"],
		WildcardSSLDomain:     values["wildcard-ssl-domain"],
		DynamicConfigFile:     values["dynamic-config-file"],
		DynamicConfigEndpoint: values["dynamic-config-endpoint"],
	}
	if policy.DynamicConfigFile == "" {
		policy.DynamicConfigFile = DefaultDynamicConfigFile
	}
	for key, target := range map[string]*bool{
		"external-domains":  &policy.ExternalDomains,
		"enable-access-log": &policy.EnableAccessLog,
	} {
		if values[key] == "" {
			continue
		}
		value, err := strconv.ParseBool(values[key])
		if err != nil {
			return traefik.RoutingPolicy{}, &traefik.ValidationError{Field: key, Reason: err.Error()}
		}
		*target = value
	}
	return policy, nil
}

// ApplyOverrides sets every policy field the operator config defines.
func ApplyOverrides(policy *traefik.RoutingPolicy, conf *config.Config) {
	if conf.DNSProvider != "" {
		policy.DNSProvider = traefik.DNSProvider(conf.DNSProvider)
	}
	if conf.LetsencryptEmail != "" {
		policy.LetsencryptEmail = conf.LetsencryptEmail
	}
	if conf.ACMEEmail != "" {
		policy.ACMEEmail = conf.ACMEEmail
	}
	if conf.WildcardSSLDomain != "" {
		policy.WildcardSSLDomain = conf.WildcardSSLDomain
	}
	if conf.DynamicConfigFile != "" {
		policy.DynamicConfigFile = conf.DynamicConfigFile
	}
	if conf.DynamicConfigEndpoint != "" {
		policy.DynamicConfigEndpoint = conf.DynamicConfigEndpoint
	}
	if conf.ExternalDomains != nil {
		policy.ExternalDomains = *conf.ExternalDomains
	}
	if conf.EnableAccessLog != nil {
		policy.EnableAccessLog = *conf.EnableAccessLog
	}
}

// Artifacts are the generated configuration of one router.
type Artifacts struct {
	Static  *traefik.StaticConfig
	Dynamic *traefik.DynamicConfig
	Result  *traefik.DynamicResult
}

// Generate builds both configurations from routes in order.
func Generate(logger *zap.Logger, routeList []routes.Route, policy traefik.RoutingPolicy) (*Artifacts, error) {
	builder := traefik.NewBuilder(logger)
	definitions := routes.Definitions(routeList)

	static, err := builder.BuildStatic(definitions, policy)
	if err != nil {
		return nil, fmt.Errorf("static configuration: %w", err)
	}
	dynamic, result, err := builder.BuildDynamic(definitions, policy)
	if err != nil {
		return nil, fmt.Errorf("dynamic configuration: %w", err)
	}
	return &Artifacts{Static: static, Dynamic: dynamic, Result: result}, nil
}

// Render serializes both configurations to YAML.
func (a *Artifacts) Render() (static []byte, dynamic []byte, err error) {
	static, err = yaml.Marshal(a.Static)
	if err != nil {
		return nil, nil, fmt.Errorf("rendering static configuration: %w", err)
	}
	dynamic, err = yaml.Marshal(a.Dynamic)
	if err != nil {
		return nil, nil, fmt.Errorf("rendering dynamic configuration: %w", err)
	}
	return static, dynamic, nil
}

// WriteFiles writes the rendered configurations. Empty paths are skipped.
func (a *Artifacts) WriteFiles(staticPath, dynamicPath string) error {
	static, dynamic, err := a.Render()
	if err != nil {
		return err
	}
	for path, data := range map[string][]byte{staticPath: static, dynamicPath: dynamic} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
	}
	return nil
}

// Publish stores both configurations in a ConfigMap mounted by the traefik deployment.
func (a *Artifacts) Publish(ctx context.Context, client kubernetes.Interface, namespace, name string) error {
	static, dynamic, err := a.Render()
	if err != nil {
		return err
	}
	data := map[string]string{
		StaticConfigKey:  string(static),
		DynamicConfigKey: string(dynamic),
	}

	configMaps := client.CoreV1().ConfigMaps(namespace)
	existing, err := configMaps.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		_, err = configMaps.Create(ctx, &corev1.ConfigMap{
			ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: TraefikProvider.Labels()},
			Data:       data,
		}, metav1.CreateOptions{})
		return err
	}
	if err != nil {
		return fmt.Errorf("getting configmap %s: %w", name, err)
	}
	existing.Data = data
	_, err = configMaps.Update(ctx, existing, metav1.UpdateOptions{})
	return err
}
