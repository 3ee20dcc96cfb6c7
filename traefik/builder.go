// builder.go

package traefik

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
)

// ResourceNamer handles the generation of consistent and unique names
// for Traefik resources (routers and services).
type ResourceNamer struct {
	// services and routers map the names handed out in this pass to the route
	// owning them
	services map[string]string
	routers  map[string]string
}

// NewResourceNamer creates a new ResourceNamer instance.
func NewResourceNamer() *ResourceNamer {
	return &ResourceNamer{
		services: make(map[string]string),
		routers:  make(map[string]string),
	}
}

// generateName creates a normalized name from multiple parts.
// It handles special characters, ensures lowercase, and removes duplicated separators.
func (n *ResourceNamer) generateName(parts ...string) string {
	fullName := strings.Join(parts, "-")
	fullName = strings.ToLower(fullName)

	replacer := strings.NewReplacer(
		".", "-",
		"/", "-",
		"_", "-",
		"@", "-",
		":", "-",
		" ", "-",
	)
	name := replacer.Replace(fullName)

	for strings.Contains(name, "--") {
		name = strings.ReplaceAll(name, "--", "-")
	}

	return strings.Trim(name, "-")
}

// getServiceName generates the service name of a route.
func (n *ResourceNamer) getServiceName(rd RouteDefinition) string {
	return n.generateName(rd.Name)
}

// getRouterName generates the router name for an entrypoint, e.g. "https-<route>".
func (n *ResourceNamer) getRouterName(entryPoint string, rd RouteDefinition) string {
	return n.generateName(entryPoint, rd.Name)
}

// getExternalRouterName generates the router name for the i-th extra external domain,
// e.g. "http-<route>-eed0".
func (n *ResourceNamer) getExternalRouterName(entryPoint string, rd RouteDefinition, i int) string {
	return n.generateName(entryPoint, rd.Name, fmt.Sprintf("eed%d", i))
}

// claim reserves the service and router names of rd. Nothing is reserved when
// any of them already belongs to a route of this pass.
func (n *ResourceNamer) claim(rd RouteDefinition, service string, routers []string) error {
	if owner, taken := n.services[service]; taken {
		return &DuplicateNameError{Route: rd.Name, Name: service, Owner: owner}
	}
	for _, name := range routers {
		if owner, taken := n.routers[name]; taken {
			return &DuplicateNameError{Route: rd.Name, Name: name, Owner: owner}
		}
	}
	n.services[service] = rd.Name
	for _, name := range routers {
		n.routers[name] = rd.Name
	}
	return nil
}

// DynamicResult summarizes one dynamic generation pass.
type DynamicResult struct {
	// Total is the number of routes received
	Total int
	// Added counts routes that produced routers and a service
	Added int
	// Skipped counts routes without a backend URL
	Skipped int
	// Errors collects per-route failures recorded under force
	Errors *multierror.Error
	// Domains groups the sub domains of every added route by root domain
	Domains map[string][]string
}

// ErrorCount returns the number of routes that failed under force.
func (r *DynamicResult) ErrorCount() int {
	if r == nil || r.Errors == nil {
		return 0
	}
	return len(r.Errors.Errors)
}

// Builder constructs Traefik's static and dynamic configuration from route definitions.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a new Builder instance.
func NewBuilder(logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{
		logger: logger,
	}
}

func newDynamicConfig() *DynamicConfig {
	config := &DynamicConfig{}
	config.HTTP.Routers = make(map[string]Router)
	config.HTTP.Services = make(map[string]Service)
	config.HTTP.Middlewares = map[string]Middleware{
		SSLRedirectMiddleware: SSLRedirectMw(),
	}
	return config
}

// BuildDynamic generates Traefik's dynamic configuration from route definitions.
// Routes are processed in order. A failing route aborts the whole call unless
// policy.Force is set, in which case the failure is recorded in the result and
// the route is skipped.
func (b *Builder) BuildDynamic(routes []RouteDefinition, policy RoutingPolicy) (*DynamicConfig, *DynamicResult, error) {
	b.logger.Info("Generating traefik v2 dynamic configuration",
		zap.Int("routes", len(routes)),
		zap.String("dns_provider", string(policy.Provider())),
		zap.String("wildcard_ssl_domain", policy.WildcardSSLDomain),
		zap.Bool("external_domains", policy.ExternalDomains),
		zap.Bool("force", policy.Force),
	)

	config := newDynamicConfig()
	result := &DynamicResult{
		Total:   len(routes),
		Domains: make(map[string][]string),
	}
	namer := NewResourceNamer()
	enableSSLRedirect := policy.TLSEnabled()
	b.logger.Info("Adding routes", zap.Bool("enable_ssl_redirect", enableSSLRedirect))

	for _, route := range routes {
		added, err := b.addRoute(namer, route, policy, enableSSLRedirect, config, result)
		if err != nil {
			if !policy.Force {
				return nil, result, err
			}
			b.logger.Error("Failed to add route", zap.String("route", route.Name), zap.Error(err))
			result.Errors = multierror.Append(result.Errors, err)
			continue
		}
		if added {
			result.Added++
		} else {
			result.Skipped++
		}
	}

	b.logger.Info("Added routes",
		zap.Int("added", result.Added),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.ErrorCount()),
	)
	if result.ErrorCount() > 0 {
		b.logger.Warn("Encountered errors while adding routes", zap.Int("errors", result.ErrorCount()))
	}
	return config, result, nil
}

// checkSupported rejects route features the v2 generator does not implement.
func checkSupported(rd RouteDefinition, policy RoutingPolicy) error {
	if len(rd.ExtraNoDNSSubdomains) > 0 {
		return &UnsupportedFeatureError{
			Route:   rd.Name,
			Feature: "extra-no-dns-subdomains",
			Value:   strings.Join(rd.ExtraNoDNSSubdomains, ","),
		}
	}
	if rd.HTTPAuthSecret != "" {
		return &UnsupportedFeatureError{Route: rd.Name, Feature: "httpauth-secret", Value: rd.HTTPAuthSecret}
	}
	if policy.ExternalDomains {
		return &UnsupportedFeatureError{Route: rd.Name, Feature: "external-domains"}
	}
	return nil
}

func hostRule(hostname string) string {
	return fmt.Sprintf("Host(`%s`)", hostname)
}

// domainConfs returns the TLS domains requested for a route's frontend hostname.
func domainConfs(rd RouteDefinition, wildcardSSLDomain string) []Domain {
	if rd.RootDomain == wildcardSSLDomain {
		return []Domain{{Main: "*." + rd.RootDomain}}
	}
	if rd.SubDomain == "" {
		return []Domain{{Main: rd.RootDomain}}
	}
	return []Domain{{
		Main: rd.RootDomain,
		SANs: []string{rd.SubDomain + "." + rd.RootDomain},
	}}
}

// addRoute adds a single route configuration to the dynamic config.
// It creates the service, the HTTP and HTTPS routers and the routers for any extra
// external domains. The domain map is updated only once the route is accepted.
func (b *Builder) addRoute(namer *ResourceNamer, rd RouteDefinition, policy RoutingPolicy, enableSSLRedirect bool, config *DynamicConfig, result *DynamicResult) (bool, error) {
	if rd.BackendURL == "" {
		b.logger.Debug("Skipping route without backend url", zap.String("route", rd.Name))
		return false, nil
	}
	if err := checkSupported(rd, policy); err != nil {
		return false, err
	}

	b.logger.Debug("Adding route to traefik v2 dynamic config",
		zap.String("route", rd.Name),
		zap.String("frontend_hostname", rd.FrontendHostname),
		zap.String("backend_url", rd.BackendURL),
		zap.String("root_domain", rd.RootDomain),
		zap.String("sub_domain", rd.SubDomain),
	)

	serviceName := namer.getServiceName(rd)
	httpRouter := namer.getRouterName(EntryPointHTTP, rd)
	httpsRouter := namer.getRouterName(EntryPointHTTPS, rd)
	externalRouters := make([][2]string, len(rd.ExtraExternalDomains))
	routerNames := []string{httpRouter, httpsRouter}
	for i := range rd.ExtraExternalDomains {
		externalRouters[i] = [2]string{
			namer.getExternalRouterName(EntryPointHTTP, rd, i),
			namer.getExternalRouterName(EntryPointHTTPS, rd, i),
		}
		routerNames = append(routerNames, externalRouters[i][0], externalRouters[i][1])
	}
	if err := namer.claim(rd, serviceName, routerNames); err != nil {
		return false, err
	}

	config.HTTP.Services[serviceName] = Service{
		LoadBalancer: &LoadBalancer{
			Servers: []Server{
				{
					URL: rd.BackendURL,
				},
			},
		},
	}

	var httpMiddlewares []string
	if enableSSLRedirect {
		httpMiddlewares = []string{SSLRedirectMiddleware}
	}

	config.HTTP.Routers[httpRouter] = Router{
		EntryPoints: []string{EntryPointHTTP},
		Service:     serviceName,
		Rule:        hostRule(rd.FrontendHostname),
		Middlewares: httpMiddlewares,
	}

	// Emitted even when TLS is disabled for the policy.
	config.HTTP.Routers[httpsRouter] = Router{
		EntryPoints: []string{EntryPointHTTPS},
		Service:     serviceName,
		Rule:        hostRule(rd.FrontendHostname),
		TLS: &TLS{
			CertResolver: ResolverDNS,
			Domains:      domainConfs(rd, policy.WildcardSSLDomain),
		},
	}

	for i, domain := range rd.ExtraExternalDomains {
		config.HTTP.Routers[externalRouters[i][0]] = Router{
			EntryPoints: []string{EntryPointHTTP},
			Service:     serviceName,
			Rule:        hostRule(domain),
			Middlewares: httpMiddlewares,
		}
		config.HTTP.Routers[externalRouters[i][1]] = Router{
			EntryPoints: []string{EntryPointHTTPS},
			Service:     serviceName,
			Rule:        hostRule(domain),
			TLS: &TLS{
				CertResolver: ResolverTLS,
				Domains:      []Domain{{Main: domain}},
			},
		}
	}

	result.Domains[rd.RootDomain] = append(result.Domains[rd.RootDomain], rd.SubDomain)
	return true, nil
}
