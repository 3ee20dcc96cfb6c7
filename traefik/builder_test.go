// builder_test.go
package traefik

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exampleRoute() RouteDefinition {
	return RouteDefinition{
		Name:             "a",
		BackendURL:       "http://a:80",
		FrontendHostname: "a.example.com",
		RootDomain:       "example.com",
		SubDomain:        "a",
	}
}

func cloudflarePolicy() RoutingPolicy {
	return RoutingPolicy{
		DNSProvider:       DNSProviderCloudflare,
		LetsencryptEmail:  "ops@example.com",
		DynamicConfigFile: "/etc/traefik/dynamic.yaml",
	}
}

func TestResourceNamer(t *testing.T) {
	tests := []struct {
		name     string
		parts    []string
		expected string
	}{
		{
			name:     "simple route",
			parts:    []string{"https", "a"},
			expected: "https-a",
		},
		{
			name:     "dotted route name",
			parts:    []string{"http", "instance.datastore"},
			expected: "http-instance-datastore",
		},
		{
			name:     "multiple dashes",
			parts:    []string{"http", "my--route", "eed0"},
			expected: "http-my-route-eed0",
		},
		{
			name:     "special characters",
			parts:    []string{"HTTPS", "test:123_route"},
			expected: "https-test-123-route",
		},
	}

	namer := NewResourceNamer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := namer.generateName(tt.parts...)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestResourceNamerClaim(t *testing.T) {
	namer := NewResourceNamer()
	one := RouteDefinition{Name: "site.one"}

	require.NoError(t, namer.claim(one, "site-one", []string{"http-site-one", "https-site-one"}))

	err := namer.claim(RouteDefinition{Name: "site-one"}, "site-one", []string{"http-site-one", "https-site-one"})
	var duplicate *DuplicateNameError
	require.True(t, errors.As(err, &duplicate))
	assert.Equal(t, "site-one", duplicate.Route)
	assert.Equal(t, "site-one", duplicate.Name)
	assert.Equal(t, "site.one", duplicate.Owner)

	// a failed claim reserves nothing
	err = namer.claim(RouteDefinition{Name: "other"}, "other", []string{"http-other", "https-site-one"})
	require.Error(t, err)
	assert.NoError(t, namer.claim(RouteDefinition{Name: "other"}, "other", []string{"http-other"}))

	// services and routers are separate namespaces
	assert.NoError(t, namer.claim(RouteDefinition{Name: "http-site-one"}, "http-site-one", nil))
}

func TestBuildDynamicDistinctNames(t *testing.T) {
	routes := []RouteDefinition{
		{Name: "site.one", BackendURL: "http://one:80", FrontendHostname: "one.example.com", RootDomain: "example.com", SubDomain: "one"},
		{Name: "site-two", BackendURL: "http://two:80", FrontendHostname: "two.example.com", RootDomain: "example.com", SubDomain: "two"},
		{Name: "Upper", BackendURL: "http://upper:80", FrontendHostname: "upper.example.com", RootDomain: "example.com", SubDomain: "upper"},
	}

	config, result, err := NewBuilder(nil).BuildDynamic(routes, cloudflarePolicy())
	require.NoError(t, err)

	assert.Len(t, config.HTTP.Services, 3)
	assert.Len(t, config.HTTP.Routers, 6)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, "http://one:80", config.HTTP.Services["site-one"].LoadBalancer.Servers[0].URL)
	assert.Equal(t, "http://two:80", config.HTTP.Services["site-two"].LoadBalancer.Servers[0].URL)
	assert.Equal(t, "upper", config.HTTP.Routers["https-upper"].Service)
}

func TestBuildDynamicNameCollision(t *testing.T) {
	routes := []RouteDefinition{
		{Name: "site.one", BackendURL: "http://dotted:80", FrontendHostname: "dotted.example.com", RootDomain: "example.com", SubDomain: "dotted"},
		{Name: "site-one", BackendURL: "http://dashed:80", FrontendHostname: "dashed.example.com", RootDomain: "example.com", SubDomain: "dashed"},
		{Name: "Upper", BackendURL: "http://upper:80", FrontendHostname: "upper.example.com", RootDomain: "example.com", SubDomain: "upper"},
	}

	t.Run("aborts without force", func(t *testing.T) {
		_, _, err := NewBuilder(nil).BuildDynamic(routes, cloudflarePolicy())

		var duplicate *DuplicateNameError
		require.True(t, errors.As(err, &duplicate))
		assert.Equal(t, "site-one", duplicate.Route)
		assert.Equal(t, "site.one", duplicate.Owner)
	})

	t.Run("force keeps the first route", func(t *testing.T) {
		policy := cloudflarePolicy()
		policy.Force = true
		config, result, err := NewBuilder(nil).BuildDynamic(routes, policy)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Added)
		assert.Equal(t, 1, result.ErrorCount())
		assert.Len(t, config.HTTP.Services, result.Added)
		assert.Len(t, config.HTTP.Routers, 2*result.Added)
		assert.Equal(t, "http://dotted:80", config.HTTP.Services["site-one"].LoadBalancer.Servers[0].URL)
		assert.Equal(t, "Host(`dotted.example.com`)", config.HTTP.Routers["https-site-one"].Rule)
		assert.Equal(t, map[string][]string{"example.com": {"dotted", "upper"}}, result.Domains)
	})

	t.Run("external router names", func(t *testing.T) {
		clash := []RouteDefinition{
			{Name: "a", BackendURL: "http://a:80", FrontendHostname: "a.example.com", RootDomain: "example.com", SubDomain: "a",
				ExtraExternalDomains: []string{"a.org"}},
			{Name: "a-eed0", BackendURL: "http://b:80", FrontendHostname: "b.example.com", RootDomain: "example.com", SubDomain: "b"},
		}
		_, _, err := NewBuilder(nil).BuildDynamic(clash, cloudflarePolicy())

		var duplicate *DuplicateNameError
		require.True(t, errors.As(err, &duplicate))
		assert.Equal(t, "http-a-eed0", duplicate.Name)
	})
}

func TestBuildDynamic(t *testing.T) {
	tests := []struct {
		name   string
		routes []RouteDefinition
		policy RoutingPolicy
		check  func(t *testing.T, config *DynamicConfig, result *DynamicResult)
	}{
		{
			name:   "cloudflare route with san certificate",
			routes: []RouteDefinition{exampleRoute()},
			policy: cloudflarePolicy(),
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				router, exists := config.HTTP.Routers["https-a"]
				require.True(t, exists)
				assert.Equal(t, "Host(`a.example.com`)", router.Rule)
				assert.Equal(t, []string{"https"}, router.EntryPoints)
				assert.Equal(t, "a", router.Service)
				require.NotNil(t, router.TLS)
				assert.Equal(t, "myresolver", router.TLS.CertResolver)
				assert.Equal(t, []Domain{{Main: "example.com", SANs: []string{"a.example.com"}}}, router.TLS.Domains)

				router, exists = config.HTTP.Routers["http-a"]
				require.True(t, exists)
				assert.Equal(t, []string{"http"}, router.EntryPoints)
				assert.Equal(t, []string{"SSLRedirect"}, router.Middlewares)
				assert.Nil(t, router.TLS)

				service, exists := config.HTTP.Services["a"]
				require.True(t, exists)
				require.Len(t, service.LoadBalancer.Servers, 1)
				assert.Equal(t, "http://a:80", service.LoadBalancer.Servers[0].URL)

				assert.Equal(t, map[string][]string{"example.com": {"a"}}, result.Domains)
				assert.Equal(t, 1, result.Added)
			},
		},
		{
			name:   "wildcard ssl domain",
			routes: []RouteDefinition{exampleRoute()},
			policy: func() RoutingPolicy {
				p := cloudflarePolicy()
				p.WildcardSSLDomain = "example.com"
				return p
			}(),
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				router, exists := config.HTTP.Routers["https-a"]
				require.True(t, exists)
				assert.Equal(t, []Domain{{Main: "*.example.com"}}, router.TLS.Domains)
			},
		},
		{
			name: "route on the root domain",
			routes: []RouteDefinition{
				{Name: "apex", BackendURL: "http://apex:80", FrontendHostname: "example.com", RootDomain: "example.com"},
			},
			policy: cloudflarePolicy(),
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				router, exists := config.HTTP.Routers["https-apex"]
				require.True(t, exists)
				assert.Equal(t, "Host(`example.com`)", router.Rule)
				assert.Equal(t, []Domain{{Main: "example.com"}}, router.TLS.Domains)
				assert.Equal(t, map[string][]string{"example.com": {""}}, result.Domains)
			},
		},
		{
			name:   "unknown dns provider disables ssl redirect",
			routes: []RouteDefinition{exampleRoute()},
			policy: RoutingPolicy{DNSProvider: "unknown"},
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				router, exists := config.HTTP.Routers["http-a"]
				require.True(t, exists)
				assert.NotContains(t, router.Middlewares, "SSLRedirect")
				// The HTTPS router is still emitted without a usable resolver.
				_, exists = config.HTTP.Routers["https-a"]
				assert.True(t, exists)
			},
		},
		{
			name:   "cloudflare without email disables ssl redirect",
			routes: []RouteDefinition{exampleRoute()},
			policy: RoutingPolicy{DNSProvider: DNSProviderCloudflare},
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				assert.Empty(t, config.HTTP.Routers["http-a"].Middlewares)
			},
		},
		{
			name: "route without backend url is skipped",
			routes: []RouteDefinition{
				{Name: "nobackend", FrontendHostname: "x.other.com", RootDomain: "other.com", SubDomain: "x"},
				exampleRoute(),
			},
			policy: cloudflarePolicy(),
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				assert.Len(t, config.HTTP.Routers, 2)
				assert.Len(t, config.HTTP.Services, 1)
				assert.NotContains(t, result.Domains, "other.com")
				assert.Equal(t, 1, result.Skipped)
				assert.Equal(t, 0, result.ErrorCount())
			},
		},
		{
			name: "extra external domains",
			routes: []RouteDefinition{func() RouteDefinition {
				r := exampleRoute()
				r.ExtraExternalDomains = []string{"www.external.org", "external.org"}
				return r
			}()},
			policy: RoutingPolicy{DNSProvider: DNSProviderRoute53},
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				assert.Len(t, config.HTTP.Routers, 6)

				router, exists := config.HTTP.Routers["http-a-eed1"]
				require.True(t, exists)
				assert.Equal(t, "Host(`external.org`)", router.Rule)
				assert.Equal(t, []string{"SSLRedirect"}, router.Middlewares)

				router, exists = config.HTTP.Routers["https-a-eed0"]
				require.True(t, exists)
				assert.Equal(t, "Host(`www.external.org`)", router.Rule)
				assert.Equal(t, "a", router.Service)
				assert.Equal(t, "tlsresolver", router.TLS.CertResolver)
				assert.Equal(t, []Domain{{Main: "www.external.org"}}, router.TLS.Domains)
			},
		},
		{
			name: "domains grouped by root domain",
			routes: []RouteDefinition{
				exampleRoute(),
				{Name: "b", BackendURL: "http://b:80", FrontendHostname: "b.example.com", RootDomain: "example.com", SubDomain: "b"},
				{Name: "c", BackendURL: "http://c:80", FrontendHostname: "c.other.org", RootDomain: "other.org", SubDomain: "c"},
			},
			policy: cloudflarePolicy(),
			check: func(t *testing.T, config *DynamicConfig, result *DynamicResult) {
				assert.Equal(t, map[string][]string{
					"example.com": {"a", "b"},
					"other.org":   {"c"},
				}, result.Domains)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			builder := NewBuilder(nil)
			config, result, err := builder.BuildDynamic(tt.routes, tt.policy)
			require.NoError(t, err)
			tt.check(t, config, result)

			redirect, exists := config.HTTP.Middlewares["SSLRedirect"]
			require.True(t, exists)
			assert.Equal(t, &RedirectScheme{Scheme: "https", Permanent: true}, redirect.RedirectScheme)
		})
	}
}

func TestBuildDynamicRouterCounts(t *testing.T) {
	routes := []RouteDefinition{
		{Name: "one", BackendURL: "http://one:80", FrontendHostname: "one.example.com", RootDomain: "example.com", SubDomain: "one"},
		{Name: "two", BackendURL: "http://two:80", FrontendHostname: "two.example.com", RootDomain: "example.com", SubDomain: "two",
			ExtraExternalDomains: []string{"two.org"}},
		{Name: "three", BackendURL: "http://three:80", FrontendHostname: "three.example.com", RootDomain: "example.com", SubDomain: "three",
			ExtraExternalDomains: []string{"three.org", "www.three.org"}},
	}

	config, result, err := NewBuilder(nil).BuildDynamic(routes, cloudflarePolicy())
	require.NoError(t, err)

	// 2 routers per route plus 2 per extra external domain
	assert.Len(t, config.HTTP.Routers, 2*3+2*3)
	assert.Len(t, config.HTTP.Services, 3)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 3, result.Added)
}

func TestBuildDynamicUnsupportedFeatures(t *testing.T) {
	tests := []struct {
		name    string
		route   RouteDefinition
		policy  RoutingPolicy
		feature string
	}{
		{
			name: "extra no dns subdomains",
			route: func() RouteDefinition {
				r := exampleRoute()
				r.ExtraNoDNSSubdomains = []string{"b", "c"}
				return r
			}(),
			policy:  cloudflarePolicy(),
			feature: "extra-no-dns-subdomains",
		},
		{
			name: "http auth secret",
			route: func() RouteDefinition {
				r := exampleRoute()
				r.HTTPAuthSecret = "htpasswd"
				return r
			}(),
			policy:  cloudflarePolicy(),
			feature: "httpauth-secret",
		},
		{
			name:  "external domains policy",
			route: exampleRoute(),
			policy: func() RoutingPolicy {
				p := cloudflarePolicy()
				p.ExternalDomains = true
				return p
			}(),
			feature: "external-domains",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			other := RouteDefinition{Name: "ok", BackendURL: "http://ok:80", FrontendHostname: "ok.example.org", RootDomain: "example.org", SubDomain: "ok"}

			t.Run("aborts without force", func(t *testing.T) {
				config, _, err := NewBuilder(nil).BuildDynamic([]RouteDefinition{tt.route, other}, tt.policy)
				require.Error(t, err)
				assert.Nil(t, config)

				var unsupported *UnsupportedFeatureError
				require.True(t, errors.As(err, &unsupported))
				assert.Equal(t, tt.feature, unsupported.Feature)
				assert.Equal(t, "a", unsupported.Route)
			})

			t.Run("counted with force", func(t *testing.T) {
				policy := tt.policy
				policy.Force = true
				config, result, err := NewBuilder(nil).BuildDynamic([]RouteDefinition{tt.route, other}, policy)
				require.NoError(t, err)
				assert.Equal(t, 1, result.ErrorCount())
				assert.NotContains(t, config.HTTP.Services, "a")
				assert.NotContains(t, config.HTTP.Routers, "http-a")
				assert.NotContains(t, result.Domains, "example.com")

				var unsupported *UnsupportedFeatureError
				assert.True(t, errors.As(result.Errors, &unsupported))
			})
		})
	}
}

func TestBuildDynamicForceKeepsGoodRoutes(t *testing.T) {
	bad := exampleRoute()
	bad.HTTPAuthSecret = "secret"
	good := RouteDefinition{Name: "b", BackendURL: "http://b:80", FrontendHostname: "b.example.com", RootDomain: "example.com", SubDomain: "b"}

	policy := cloudflarePolicy()
	policy.Force = true
	config, result, err := NewBuilder(nil).BuildDynamic([]RouteDefinition{bad, good}, policy)
	require.NoError(t, err)

	assert.Contains(t, config.HTTP.Routers, "http-b")
	assert.Contains(t, config.HTTP.Routers, "https-b")
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Added)
	assert.Equal(t, 1, result.ErrorCount())
	assert.Equal(t, map[string][]string{"example.com": {"b"}}, result.Domains)
}
