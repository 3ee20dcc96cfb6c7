// Package routes reads CkanCloudRoute resources and exposes the accessors the
// traefik generator needs.
package routes

import (
	"k8s.io/apimachinery/pkg/runtime/schema"
)

const (
	Group    = "stable.viderum.com"
	Version  = "v1"
	Resource = "ckancloudroutes"
	Kind     = "CkanCloudRoute"

	// LabelRouterName selects the routes served by one router
	LabelRouterName = "ckan-cloud/router-name"

	// DefaultTargetNamespace is used when a route targets a service without a namespace
	DefaultTargetNamespace = "ckan-cloud"
)

// GVR is the resource of CkanCloudRoute objects.
var GVR = schema.GroupVersionResource{Group: Group, Version: Version, Resource: Resource}

// Route is one CkanCloudRoute resource.
type Route struct {
	Name   string
	Labels map[string]string
	Spec   Spec
}

// Spec holds the CkanCloudRoute spec keys.
type Spec struct {
	RouterName string `json:"router-name,omitempty"`

	// BackendURL takes precedence over the target service fields
	BackendURL string `json:"backend-url,omitempty"`

	TargetService   string `json:"target-service,omitempty"`
	TargetNamespace string `json:"target-namespace,omitempty"`
	TargetPort      int64  `json:"target-port,omitempty"`

	FrontendHostname string `json:"frontend-hostname,omitempty"`
	RootDomain       string `json:"root-domain,omitempty"`
	SubDomain        string `json:"sub-domain,omitempty"`

	ExtraNoDNSSubdomains []string `json:"extra-no-dns-subdomains,omitempty"`
	ExtraExternalDomains []string `json:"extra-external-domains,omitempty"`
	HTTPAuthSecret       string   `json:"httpauth-secret,omitempty"`
}

// resource mirrors the YAML layout of a route resource file.
type resource struct {
	Metadata struct {
		Name   string            `json:"name"`
		Labels map[string]string `json:"labels,omitempty"`
	} `json:"metadata"`
	Spec Spec `json:"spec"`
}

type resourceList struct {
	Items []resource `json:"items"`
}
