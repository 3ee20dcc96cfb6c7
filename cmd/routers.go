package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ckan-cloud/ckan-cloud-operator/config"
	"github.com/ckan-cloud/ckan-cloud-operator/kube"
	"github.com/ckan-cloud/ckan-cloud-operator/providers"
	"github.com/ckan-cloud/ckan-cloud-operator/router"
	"github.com/ckan-cloud/ckan-cloud-operator/routes"
	"github.com/ckan-cloud/ckan-cloud-operator/traefik"
)

// options for the generate command
var (
	routerName        string
	routesFile        string
	localOnly         bool
	staticOut         string
	dynamicOut        string
	publishConfigMap  string
	forceRoutes       bool
	dnsProvider       string
	letsencryptEmail  string
	acmeEmail         string
	wildcardSSLDomain string
	externalDomains   bool
	enableAccessLog   bool
	dynamicConfigFile string
	configEndpoint    string
	serveAddr         string
	serveInterval     time.Duration
)

var routersCmd = &cobra.Command{
	Use:   "routers",
	Short: "Manage routers",
}

var traefikCmd = &cobra.Command{
	Use:   "traefik",
	Short: "Manage traefik routers",
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the traefik v2 configuration of a router",
	Long: `Generate the traefik v2 static and dynamic configuration of a router.

Routes are read from the CkanCloudRoute resources labeled with the router name,
or from --routes-file. The routing policy is read from the routers/traefik
provider config, then overridden by the environment and by the policy flags.

With --local the cluster is not contacted: routes come from --routes-file and
the policy only from the environment and flags.

The static config is written to --static-out and the dynamic config to
--dynamic-out. With --configmap both are published to that ConfigMap. When none
of these are set both are printed to stdout.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if localOnly {
			return generateLocal(cmd)
		}
		return generateInCluster(cmd)
	},
}

func init() {
	flags := generateCmd.Flags()
	flags.StringVar(&routerName, "router-name", "", "name of the router whose routes are generated")
	flags.StringVar(&routesFile, "routes-file", "", "YAML file of CkanCloudRoute resources, read instead of the cluster")
	flags.BoolVar(&localOnly, "local", false, "do not contact the cluster")
	flags.StringVar(&staticOut, "static-out", "", "path of the generated static configuration")
	flags.StringVar(&dynamicOut, "dynamic-out", "", "path of the generated dynamic configuration")
	flags.StringVar(&publishConfigMap, "configmap", "", "ConfigMap receiving both configurations")
	flags.BoolVar(&forceRoutes, "force", false, "skip failing routes instead of aborting")
	flags.StringVar(&dnsProvider, "dns-provider", "", "ACME DNS challenge provider: cloudflare, route53 or azure")
	flags.StringVar(&letsencryptEmail, "letsencrypt-email", "", "letsencrypt account email")
	flags.StringVar(&acmeEmail, "acme-email", "", "ACME account email, overrides --letsencrypt-email")
	flags.StringVar(&wildcardSSLDomain, "wildcard-ssl-domain", "", "root domain served by a wildcard certificate")
	flags.BoolVar(&externalDomains, "external-domains", false, "use the TLS challenge for the primary resolver")
	flags.BoolVar(&enableAccessLog, "access-log", false, "enable the JSON access log")
	flags.StringVar(&dynamicConfigFile, "dynamic-config-file", "", "path of the dynamic configuration as seen by traefik")
	flags.StringVar(&configEndpoint, "dynamic-config-endpoint", "", "config server URL polled by traefik's HTTP provider")

	traefikCmd.AddCommand(generateCmd)
	routersCmd.AddCommand(traefikCmd)
	RootCmd.AddCommand(routersCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dynamic configuration to the traefik HTTP provider",
	Long: `Serve the traefik v2 dynamic configuration of a router at /api/config.

The configuration is regenerated from the cluster every --interval. When a
regeneration fails the previous configuration keeps being served. /health
reports the state of the last regeneration.

Point traefik at the server by setting dynamic-config-endpoint in the
routers/traefik provider config, or with --dynamic-config-endpoint when
generating the static configuration.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveInterval <= 0 {
			return fmt.Errorf("--interval must be positive, got %s", serveInterval)
		}
		c, err := clients()
		if err != nil {
			return err
		}
		server := router.NewServer(logger, func(ctx context.Context) (*router.Artifacts, error) {
			return generateFromCluster(ctx, cmd, c)
		})

		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.Run(ctx, serveAddr, serveInterval)
	},
}

func init() {
	flags := serveCmd.Flags()
	flags.StringVar(&routerName, "router-name", "", "name of the router whose routes are served")
	flags.StringVar(&routesFile, "routes-file", "", "YAML file of CkanCloudRoute resources, read instead of the cluster")
	flags.BoolVar(&forceRoutes, "force", false, "skip failing routes instead of aborting")
	flags.StringVar(&serveAddr, "addr", ":9000", "listen address")
	flags.DurationVar(&serveInterval, "interval", 30*time.Second, "regeneration interval")

	traefikCmd.AddCommand(serveCmd)
}

// generateFromCluster lists the routes and reads the policy of the router, then generates.
func generateFromCluster(ctx context.Context, cmd *cobra.Command, c *kube.Clients) (*router.Artifacts, error) {
	var (
		routeList []routes.Route
		err       error
	)
	if routesFile != "" {
		routeList, err = routes.LoadFile(routesFile)
	} else {
		routeList, err = routes.NewLister(c.Dynamic, namespace, logger).List(ctx, routerName)
	}
	if err != nil {
		return nil, err
	}

	policy, err := router.PolicyFromStore(ctx, providers.NewStore(c.Typed, namespace, logger), routerName)
	if err != nil {
		return nil, err
	}
	return generate(cmd, routeList, policy)
}

func generateInCluster(cmd *cobra.Command) error {
	ctx := commandContext(cmd)
	c, err := clients()
	if err != nil {
		return err
	}
	artifacts, err := generateFromCluster(ctx, cmd, c)
	if err != nil {
		return err
	}

	if publishConfigMap != "" {
		if err := artifacts.Publish(ctx, c.Typed, namespace, publishConfigMap); err != nil {
			return err
		}
		logger.Info("Published traefik configuration",
			zap.String("namespace", namespace),
			zap.String("configmap", publishConfigMap),
		)
	}
	return output(artifacts)
}

func generateLocal(cmd *cobra.Command) error {
	if routesFile == "" {
		return fmt.Errorf("--local requires --routes-file")
	}
	if publishConfigMap != "" {
		return fmt.Errorf("--configmap cannot be used with --local")
	}
	routeList, err := routes.LoadFile(routesFile)
	if err != nil {
		return err
	}
	artifacts, err := generate(cmd, routeList, traefik.RoutingPolicy{DynamicConfigFile: router.DefaultDynamicConfigFile})
	if err != nil {
		return err
	}
	return output(artifacts)
}

// generate applies the environment and flag overrides to policy and runs the generator.
func generate(cmd *cobra.Command, routeList []routes.Route, policy traefik.RoutingPolicy) (*router.Artifacts, error) {
	router.ApplyOverrides(&policy, conf)
	router.ApplyOverrides(&policy, flagOverrides(cmd))
	policy.Force = forceRoutes

	artifacts, err := router.Generate(logger, routeList, policy)
	if err != nil {
		return nil, err
	}
	logger.Info("Generated traefik configuration",
		zap.String("router", routerName),
		zap.Int("routes", artifacts.Result.Total),
		zap.Int("added", artifacts.Result.Added),
		zap.Int("skipped", artifacts.Result.Skipped),
		zap.Int("errors", artifacts.Result.ErrorCount()),
	)
	return artifacts, nil
}

// flagOverrides returns the policy flags given on the command line.
func flagOverrides(cmd *cobra.Command) *config.Config {
	overrides := &config.Config{
		DNSProvider:           dnsProvider,
		LetsencryptEmail:      letsencryptEmail,
		ACMEEmail:             acmeEmail,
		WildcardSSLDomain:     wildcardSSLDomain,
		DynamicConfigFile:     dynamicConfigFile,
		DynamicConfigEndpoint: configEndpoint,
	}
	if cmd.Flags().Changed("external-domains") {
		overrides.ExternalDomains = &externalDomains
	}
	if cmd.Flags().Changed("access-log") {
		overrides.EnableAccessLog = &enableAccessLog
	}
	return overrides
}

func output(artifacts *router.Artifacts) error {
	if staticOut != "" || dynamicOut != "" {
		return artifacts.WriteFiles(staticOut, dynamicOut)
	}
	if publishConfigMap != "" {
		return nil
	}
	static, dynamic, err := artifacts.Render()
	if err != nil {
		return err
	}
	printYAML(static)
	printYAML(dynamic)
	return nil
}
