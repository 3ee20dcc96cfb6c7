// Package traefik generates Traefik v2 static and dynamic configurations
// from CKAN cloud route resources and a routing policy.
package traefik

import "strings"

// DNSProvider names the DNS provider used for ACME DNS challenges.
type DNSProvider string

const (
	DNSProviderRoute53    DNSProvider = "route53"
	DNSProviderCloudflare DNSProvider = "cloudflare"
	DNSProviderAzure      DNSProvider = "azure"
)

const (
	// EntryPointHTTP is the plain HTTP entrypoint, always bound to :80
	EntryPointHTTP = "http"
	// EntryPointHTTPS is added only when TLS is enabled
	EntryPointHTTPS = "https"

	// ResolverDNS is the primary certificate resolver
	ResolverDNS = "myresolver"
	// ResolverTLS issues per-domain certificates for extra external domains
	ResolverTLS = "tlsresolver"

	ACMEStorage    = "/traefik-acme/acme.json"
	ACMETLSStorage = "/traefik-acme/acme-tls.json"

	// SSLRedirectMiddleware is registered in every dynamic configuration
	SSLRedirectMiddleware = "SSLRedirect"

	// HTTPProviderPollInterval is how often Traefik polls DynamicConfigEndpoint
	HTTPProviderPollInterval = "10s"
)

// RouteDefinition is the generator's read-only view of a single route resource.
type RouteDefinition struct {
	// Name identifies the route, unique within a generation pass
	Name string

	// BackendURL is the upstream URL. Routes without one are skipped.
	BackendURL string

	// FrontendHostname is the DNS host clients use (e.g., "a.example.com")
	FrontendHostname string

	// RootDomain and SubDomain decompose FrontendHostname for TLS domain grouping
	RootDomain string
	SubDomain  string

	// ExtraNoDNSSubdomains is not supported by the v2 generator
	ExtraNoDNSSubdomains []string

	// ExtraExternalDomains are fully-qualified hostnames served by the same backend,
	// each getting its own certificate from the TLS resolver
	ExtraExternalDomains []string

	// HTTPAuthSecret is not supported by the v2 generator
	HTTPAuthSecret string
}

// RoutingPolicy holds the global settings applied to one generation call.
type RoutingPolicy struct {
	// DNSProvider selects the ACME DNS challenge provider. Empty means cloudflare.
	DNSProvider DNSProvider

	// LetsencryptEmail is the cloudflare/letsencrypt account email
	LetsencryptEmail string

	// ACMEEmail overrides LetsencryptEmail for the ACME account when set
	ACMEEmail string

	// WildcardSSLDomain is a root domain served by a single wildcard certificate
	WildcardSSLDomain string

	// ExternalDomains switches the primary resolver to the TLS challenge.
	// Adding routes with it set is not supported.
	ExternalDomains bool

	EnableAccessLog bool

	// DynamicConfigFile is the path of the file provider watched by Traefik
	DynamicConfigFile string

	// DynamicConfigEndpoint adds an HTTP provider polling a config server
	DynamicConfigEndpoint string

	// Force records per-route failures instead of aborting
	Force bool
}

// Provider returns the effective DNS provider.
func (p RoutingPolicy) Provider() DNSProvider {
	if p.DNSProvider == "" {
		return DNSProviderCloudflare
	}
	return DNSProvider(strings.ToLower(string(p.DNSProvider)))
}

// TLSEnabled reports whether certificates and the HTTP to HTTPS redirect are active.
// Static and dynamic generation both rely on it so they always agree.
func (p RoutingPolicy) TLSEnabled() bool {
	switch p.Provider() {
	case DNSProviderCloudflare:
		return p.LetsencryptEmail != ""
	case DNSProviderRoute53, DNSProviderAzure:
		return true
	default:
		return false
	}
}

// Email returns the ACME account email.
func (p RoutingPolicy) Email() string {
	if p.ACMEEmail != "" {
		return p.ACMEEmail
	}
	return p.LetsencryptEmail
}
