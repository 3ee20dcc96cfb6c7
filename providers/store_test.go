package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

var traefikRouter = ProviderContext{Submodule: "routers", ProviderID: "traefik"}

func TestResourceName(t *testing.T) {
	tests := []struct {
		name     string
		pc       ProviderContext
		suffix   string
		expected string
	}{
		{
			name:     "no suffix",
			pc:       traefikRouter,
			expected: "ckan-cloud-provider-routers-traefik",
		},
		{
			name:     "with suffix",
			pc:       ProviderContext{Submodule: "cluster", ProviderID: "gcloud"},
			suffix:   "main",
			expected: "ckan-cloud-provider-cluster-gcloud-main",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.pc.ResourceName(tt.suffix))
		})
	}
}

func TestStoreConfigMap(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset()
	store := NewStore(client, "ckan-cloud", nil)
	assert.Equal(t, "ckan-cloud", store.Namespace())

	value, err := store.Get(ctx, traefikRouter, "dns-provider", Options{Default: "cloudflare"})
	require.NoError(t, err)
	assert.Equal(t, "cloudflare", value)

	_, err = store.Get(ctx, traefikRouter, "dns-provider", Options{Required: true})
	assert.True(t, errors.Is(err, ErrConfigNotFound))

	require.NoError(t, store.Set(ctx, traefikRouter, map[string]string{"dns-provider": "route53"}, Options{}))
	require.NoError(t, store.Set(ctx, traefikRouter, map[string]string{"wildcard-ssl-domain": "example.com"}, Options{}))

	value, err = store.Get(ctx, traefikRouter, "dns-provider", Options{Required: true})
	require.NoError(t, err)
	assert.Equal(t, "route53", value)

	configMap, err := client.CoreV1().ConfigMaps("ckan-cloud").Get(ctx, "ckan-cloud-provider-routers-traefik", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"dns-provider": "route53", "wildcard-ssl-domain": "example.com"}, configMap.Data)
	assert.Equal(t, "traefik", configMap.Labels[LabelProviderID])
}

func TestStoreSecret(t *testing.T) {
	ctx := context.Background()
	client := fake.NewSimpleClientset()
	store := NewStore(client, "ckan-cloud", nil)
	gcloud := ProviderContext{Submodule: "cluster", ProviderID: "gcloud"}

	require.NoError(t, store.Set(ctx, gcloud, map[string]string{"service-account-email": "sa@project.iam"}, Options{Secret: true}))
	require.NoError(t, store.Set(ctx, gcloud, map[string]string{"service-account-json": "{}"}, Options{Secret: true}))

	values, err := store.GetAll(ctx, gcloud, Options{Secret: true})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"service-account-email": "sa@project.iam", "service-account-json": "{}"}, values)

	// secrets and configmaps are separate namespaces of keys
	value, err := store.Get(ctx, gcloud, "service-account-email", Options{})
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestStoreProvider(t *testing.T) {
	ctx := context.Background()
	store := NewStore(fake.NewSimpleClientset(), "ckan-cloud", nil)

	provider, err := store.GetProvider(ctx, "routers")
	require.NoError(t, err)
	assert.Empty(t, provider)

	require.NoError(t, store.SetProvider(ctx, traefikRouter))
	require.NoError(t, store.SetProvider(ctx, ProviderContext{Submodule: "cluster", ProviderID: "gcloud"}))

	provider, err = store.GetProvider(ctx, "routers")
	require.NoError(t, err)
	assert.Equal(t, "traefik", provider)

	provider, err = store.GetProvider(ctx, "cluster")
	require.NoError(t, err)
	assert.Equal(t, "gcloud", provider)
}
