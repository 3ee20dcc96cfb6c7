// Package cmd is the ckan-cloud-operator command line.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ckan-cloud/ckan-cloud-operator/config"
	"github.com/ckan-cloud/ckan-cloud-operator/kube"
	"github.com/ckan-cloud/ckan-cloud-operator/providers"
)

// these are set up by Execute and shared by every subcommand
var (
	logger *zap.Logger
	conf   *config.Config
)

// global flags
var (
	kubeconfig string
	namespace  string
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "ckan-cloud-operator",
	Short: "ckan-cloud-operator manages CKAN cloud clusters.",
	Long: `ckan-cloud-operator manages the routers, providers, apps and storage of a
CKAN cloud cluster.

Generate the traefik configuration of a router from its routes with:
$ ckan-cloud-operator routers traefik generate --router-name main`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command with the loaded configuration. This is called
// by main.main(). It only needs to happen once.
func Execute(l *zap.Logger, c *config.Config) error {
	logger = l
	conf = c
	kubeconfig = c.KubeConfig
	namespace = c.Namespace
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVar(&kubeconfig, "kubeconfig", "", "path to the kubeconfig file, defaults to $KUBECONFIG or the in cluster config")
	RootCmd.PersistentFlags().StringVar(&namespace, "namespace", config.DefaultNamespace, "namespace of the operator resources, defaults to $CKAN_CLOUD_NAMESPACE")
}

// clients connects to the cluster selected by the global flags.
func clients() (*kube.Clients, error) {
	return kube.NewClients(logger, kubeconfig)
}

// providerStore returns the provider config store of the operator namespace.
func providerStore() (*providers.Store, error) {
	c, err := clients()
	if err != nil {
		return nil, err
	}
	return providers.NewStore(c.Typed, namespace, logger), nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// printYAML writes data to stdout followed by a document separator.
func printYAML(data []byte) {
	fmt.Fprint(os.Stdout, string(data))
	fmt.Fprintln(os.Stdout, "---")
}
