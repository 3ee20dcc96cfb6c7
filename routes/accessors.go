package routes

import (
	"fmt"
	"strings"

	"github.com/ckan-cloud/ckan-cloud-operator/traefik"
)

// GetRouteName returns the route identifier used for router and service names.
func GetRouteName(r Route) string {
	return r.Name
}

// GetBackendURL returns the upstream URL of the route, or "" when it has none.
func GetBackendURL(r Route) string {
	if r.Spec.BackendURL != "" {
		return r.Spec.BackendURL
	}
	if r.Spec.TargetService == "" {
		return ""
	}

	namespace := r.Spec.TargetNamespace
	if namespace == "" {
		namespace = DefaultTargetNamespace
	}
	port := r.Spec.TargetPort
	if port == 0 {
		port = 80
	}
	return fmt.Sprintf("http://%s.%s:%d", r.Spec.TargetService, namespace, port)
}

// GetFrontendHostname returns the DNS host clients use for the route.
func GetFrontendHostname(r Route) string {
	if r.Spec.FrontendHostname != "" {
		return r.Spec.FrontendHostname
	}
	if r.Spec.SubDomain == "" {
		return r.Spec.RootDomain
	}
	return r.Spec.SubDomain + "." + r.Spec.RootDomain
}

// GetDomainParts splits the frontend hostname into its root and sub domain.
// Explicit spec keys win; otherwise the first label is the sub domain.
func GetDomainParts(r Route) (root, sub string) {
	if r.Spec.RootDomain != "" {
		return r.Spec.RootDomain, r.Spec.SubDomain
	}
	hostname := GetFrontendHostname(r)
	sub, root, found := strings.Cut(hostname, ".")
	if !found {
		return hostname, ""
	}
	return root, sub
}

// Definition converts a route into the generator's view of it.
func Definition(r Route) traefik.RouteDefinition {
	root, sub := GetDomainParts(r)
	return traefik.RouteDefinition{
		Name:                 GetRouteName(r),
		BackendURL:           GetBackendURL(r),
		FrontendHostname:     GetFrontendHostname(r),
		RootDomain:           root,
		SubDomain:            sub,
		ExtraNoDNSSubdomains: r.Spec.ExtraNoDNSSubdomains,
		ExtraExternalDomains: r.Spec.ExtraExternalDomains,
		HTTPAuthSecret:       r.Spec.HTTPAuthSecret,
	}
}

// Definitions converts routes in order.
func Definitions(routes []Route) []traefik.RouteDefinition {
	definitions := make([]traefik.RouteDefinition, 0, len(routes))
	for _, r := range routes {
		definitions = append(definitions, Definition(r))
	}
	return definitions
}
