package traefik

import (
	"strings"

	"go.uber.org/zap"
)

// BuildStatic generates Traefik's static configuration: entrypoints, ping, the file
// provider pointing at the dynamic configuration and, when TLS is enabled, the ACME
// certificate resolvers.
func (b *Builder) BuildStatic(routes []RouteDefinition, policy RoutingPolicy) (*StaticConfig, error) {
	if policy.DynamicConfigFile == "" {
		return nil, &ValidationError{Field: "dynamic config file", Reason: "missing path"}
	}

	b.logger.Info("Generating traefik v2 static configuration",
		zap.Int("routes", len(routes)),
		zap.String("dns_provider", string(policy.Provider())),
		zap.String("letsencrypt_email", policy.LetsencryptEmail),
		zap.Bool("enable_access_log", policy.EnableAccessLog),
		zap.String("wildcard_ssl_domain", policy.WildcardSSLDomain),
		zap.Bool("external_domains", policy.ExternalDomains),
	)

	config := &StaticConfig{
		EntryPoints: map[string]EntryPoint{
			EntryPointHTTP: {Address: ":80"},
		},
		Ping: &Ping{EntryPoint: EntryPointHTTP},
		Providers: Providers{
			File: &FileProvider{
				Watch:    false,
				Filename: policy.DynamicConfigFile,
			},
		},
	}

	if policy.DynamicConfigEndpoint != "" {
		config.Providers.HTTP = &HTTPProvider{
			Endpoint:     policy.DynamicConfigEndpoint,
			PollInterval: HTTPProviderPollInterval,
		}
	}

	if policy.EnableAccessLog {
		config.AccessLog = &AccessLog{
			Format: "json",
			Fields: &AccessLogFields{DefaultMode: "keep"},
		}
	}

	if !policy.TLSEnabled() {
		b.logger.Info("No valid dns provider, will not setup SSL",
			zap.String("dns_provider", string(policy.Provider())))
		return config, nil
	}

	if err := b.addLetsencrypt(config, routes, policy); err != nil {
		return nil, err
	}
	return config, nil
}

// addLetsencrypt adds the HTTPS entrypoint and certificate resolvers.
func (b *Builder) addLetsencrypt(config *StaticConfig, routes []RouteDefinition, policy RoutingPolicy) error {
	email := policy.Email()
	b.logger.Info("Adding letsencrypt acme traefik v2 static configuration",
		zap.String("dns_provider", string(policy.Provider())),
		zap.String("acme_email", email),
	)

	if !strings.Contains(email, "@") {
		return &ValidationError{Field: "acme email", Reason: "must contain @: " + email}
	}

	config.EntryPoints[EntryPointHTTPS] = EntryPoint{Address: ":443"}

	primary := &ACME{Email: email, Storage: ACMEStorage}
	if policy.ExternalDomains {
		primary.TLSChallenge = &TLSChallenge{}
	} else {
		primary.DNSChallenge = &DNSChallenge{Provider: string(policy.Provider())}
	}
	config.CertificatesResolvers = map[string]CertificateResolver{
		ResolverDNS: {ACME: primary},
	}

	if hasExtraExternalDomains(routes) {
		config.CertificatesResolvers[ResolverTLS] = CertificateResolver{
			ACME: &ACME{
				Email:        email,
				Storage:      ACMETLSStorage,
				TLSChallenge: &TLSChallenge{},
			},
		}
	}
	return nil
}

func hasExtraExternalDomains(routes []RouteDefinition) bool {
	for _, route := range routes {
		if len(route.ExtraExternalDomains) > 0 {
			return true
		}
	}
	return false
}
