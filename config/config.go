// Package config loads operator configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const DefaultNamespace = "ckan-cloud"

// Config represents application configuration
type Config struct {
	// KubeConfig is empty when running inside the cluster
	KubeConfig string
	// Namespace holds the operator resources
	Namespace string
	// LogLevel is one of debug, info, warn, error
	LogLevel string

	// Routing policy overrides, applied on top of the router provider config
	DNSProvider           string
	LetsencryptEmail      string
	ACMEEmail             string
	WildcardSSLDomain     string
	ExternalDomains       *bool
	EnableAccessLog       *bool
	DynamicConfigFile     string
	DynamicConfigEndpoint string
}

// Load reads an optional .env file and then the environment.
// It returns whether a .env file was found.
func Load(filenames ...string) (*Config, bool) {
	loaded := godotenv.Load(filenames...) == nil
	return FromEnv(), loaded
}

// FromEnv loads config from environment variables
func FromEnv() *Config {
	conf := &Config{
		KubeConfig:            os.Getenv("KUBECONFIG"),
		Namespace:             os.Getenv("CKAN_CLOUD_NAMESPACE"),
		LogLevel:              os.Getenv("LOG_LEVEL"),
		DNSProvider:           os.Getenv("TRAEFIK_DNS_PROVIDER"),
		LetsencryptEmail:      os.Getenv("LETSENCRYPT_EMAIL"),
		ACMEEmail:             os.Getenv("ACME_EMAIL"),
		WildcardSSLDomain:     os.Getenv("WILDCARD_SSL_DOMAIN"),
		ExternalDomains:       boolEnv("TRAEFIK_EXTERNAL_DOMAINS"),
		EnableAccessLog:       boolEnv("TRAEFIK_ENABLE_ACCESS_LOG"),
		DynamicConfigFile:     os.Getenv("TRAEFIK_DYNAMIC_CONFIG_FILE"),
		DynamicConfigEndpoint: os.Getenv("TRAEFIK_DYNAMIC_CONFIG_ENDPOINT"),
	}
	if conf.Namespace == "" {
		conf.Namespace = DefaultNamespace
	}
	if conf.LogLevel == "" {
		conf.LogLevel = "info"
	}
	return conf
}

// boolEnv returns nil for unset or unparsable values.
func boolEnv(key string) *bool {
	value, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return nil
	}
	return &value
}
