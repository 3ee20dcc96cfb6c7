package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ckan-cloud/ckan-cloud-operator/providers"
)

// options for the providers commands
var (
	providerSecret bool
	providerSuffix string
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Manage provider configuration",
}

var providersConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Get or set provider config values",
}

var providersConfigGetCmd = &cobra.Command{
	Use:   "get SUBMODULE PROVIDER [KEY]",
	Short: "Print provider config values",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := providerStore()
		if err != nil {
			return err
		}
		pc := providers.ProviderContext{Submodule: args[0], ProviderID: args[1]}
		opts := providers.Options{Secret: providerSecret, Suffix: providerSuffix}

		if len(args) == 3 {
			value, err := store.Get(commandContext(cmd), pc, args[2], opts)
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil
		}

		values, err := store.GetAll(commandContext(cmd), pc, opts)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Printf("%s=%s\n", key, values[key])
		}
		return nil
	},
}

var providersConfigSetCmd = &cobra.Command{
	Use:   "set SUBMODULE PROVIDER KEY=VALUE...",
	Short: "Merge values into the provider config",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseKeyValues(args[2:])
		if err != nil {
			return err
		}
		store, err := providerStore()
		if err != nil {
			return err
		}
		pc := providers.ProviderContext{Submodule: args[0], ProviderID: args[1]}
		if err := store.Set(commandContext(cmd), pc, values, providers.Options{Secret: providerSecret, Suffix: providerSuffix}); err != nil {
			return err
		}
		logger.Info("Updated provider config",
			zap.String("namespace", store.Namespace()),
			zap.String("submodule", pc.Submodule),
			zap.String("provider", pc.ProviderID),
			zap.Int("keys", len(values)),
		)
		return nil
	},
}

var providersSetCmd = &cobra.Command{
	Use:   "set SUBMODULE PROVIDER",
	Short: "Set the active provider of a submodule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := providerStore()
		if err != nil {
			return err
		}
		if err := store.SetProvider(commandContext(cmd), providers.ProviderContext{Submodule: args[0], ProviderID: args[1]}); err != nil {
			return err
		}
		logger.Info("Set active provider",
			zap.String("namespace", store.Namespace()),
			zap.String("submodule", args[0]),
			zap.String("provider", args[1]),
		)
		return nil
	},
}

var providersGetCmd = &cobra.Command{
	Use:   "get SUBMODULE",
	Short: "Print the active provider of a submodule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := providerStore()
		if err != nil {
			return err
		}
		provider, err := store.GetProvider(commandContext(cmd), args[0])
		if err != nil {
			return err
		}
		fmt.Println(provider)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{providersConfigGetCmd, providersConfigSetCmd} {
		c.Flags().BoolVar(&providerSecret, "secret", false, "use the provider Secret instead of its ConfigMap")
		c.Flags().StringVar(&providerSuffix, "suffix", "", "suffix of the provider resource name, e.g. a router name")
	}

	providersConfigCmd.AddCommand(providersConfigGetCmd, providersConfigSetCmd)
	providersCmd.AddCommand(providersConfigCmd, providersSetCmd, providersGetCmd)
	RootCmd.AddCommand(providersCmd)
}

// parseKeyValues parses KEY=VALUE arguments.
func parseKeyValues(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		key, value, found := strings.Cut(arg, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid KEY=VALUE argument: %q", arg)
		}
		values[key] = value
	}
	return values, nil
}
