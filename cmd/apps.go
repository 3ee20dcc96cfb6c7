package cmd

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/ckan-cloud/ckan-cloud-operator/apps"
)

// options for the apps commands
var (
	appType     string
	appSpecFile string
	appSet      []string
	appValues   []string
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "Manage auxiliary cluster apps",
	Long: `Manage auxiliary cluster apps.

The instance spec is read from --spec-file, then --type and every --set KEY=VALUE
replace top level keys and every --values KEY=VALUE is merged into the spec
values.

$ ckan-cloud-operator apps deploy nfs --type nfs-client-provisioner \
    --set namespace=ckan-cloud --set storageclass=cca-ckan --set nfs-server-ip=10.0.0.2`,
}

var appsDeployCmd = &cobra.Command{
	Use:   "deploy INSTANCE",
	Short: "Deploy or update an app instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, instance, override, err := appInstance(args[0])
		if err != nil {
			return err
		}
		res, err := registry.Update(commandContext(cmd), instance, override)
		if err != nil {
			return err
		}
		return printObject(res)
	},
}

var appsDeleteCmd = &cobra.Command{
	Use:   "delete INSTANCE",
	Short: "Delete an app instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, instance, override, err := appInstance(args[0])
		if err != nil {
			return err
		}
		instance.Spec = apps.ApplyOverrideSpec(instance.Spec, override)
		return registry.Delete(commandContext(cmd), instance)
	},
}

var appsGetCmd = &cobra.Command{
	Use:   "get INSTANCE",
	Short: "Print the deployed objects of an app instance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, instance, override, err := appInstance(args[0])
		if err != nil {
			return err
		}
		instance.Spec = apps.ApplyOverrideSpec(instance.Spec, override)
		objects, err := registry.Get(commandContext(cmd), instance)
		if err != nil {
			return err
		}
		return printObject(objects)
	},
}

var appsTypesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the app types",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		for _, tag := range appTypes() {
			fmt.Println(tag)
		}
	},
}

func init() {
	for _, c := range []*cobra.Command{appsDeployCmd, appsDeleteCmd, appsGetCmd} {
		c.Flags().StringVar(&appType, "type", "", "app type of the instance")
		c.Flags().StringVar(&appSpecFile, "spec-file", "", "YAML file holding the instance spec")
		c.Flags().StringArrayVar(&appSet, "set", nil, "KEY=VALUE replacing a spec key")
		c.Flags().StringArrayVar(&appValues, "values", nil, "KEY=VALUE merged into the spec values")
	}

	appsCmd.AddCommand(appsDeployCmd, appsDeleteCmd, appsGetCmd, appsTypesCmd)
	RootCmd.AddCommand(appsCmd)
}

// appInstance connects to the cluster and builds the instance and override from the flags.
func appInstance(id string) (*apps.Registry, apps.Instance, apps.Spec, error) {
	instance := apps.Instance{ID: id, Spec: apps.Spec{}}
	if appSpecFile != "" {
		data, err := os.ReadFile(appSpecFile)
		if err != nil {
			return nil, instance, nil, err
		}
		if err := yaml.Unmarshal(data, &instance.Spec); err != nil {
			return nil, instance, nil, fmt.Errorf("parsing %s: %w", appSpecFile, err)
		}
	}

	override, err := appOverride()
	if err != nil {
		return nil, instance, nil, err
	}

	c, err := clients()
	if err != nil {
		return nil, instance, nil, err
	}
	return apps.NewDefaultRegistry(c.Applier, logger), instance, override, nil
}

// appTypes returns the app types known to the default registry.
func appTypes() []string {
	return apps.NewDefaultRegistry(nil, logger).Types()
}

func appOverride() (apps.Spec, error) {
	if appType != "" && !slices.Contains(appTypes(), appType) {
		return nil, fmt.Errorf("unknown app type %q, expected one of: %s", appType, strings.Join(appTypes(), ", "))
	}
	set, err := parseKeyValues(appSet)
	if err != nil {
		return nil, err
	}
	values, err := parseKeyValues(appValues)
	if err != nil {
		return nil, err
	}

	override := apps.Spec{}
	for key, value := range set {
		override[key] = value
	}
	if appType != "" {
		override["app-type"] = appType
	}
	if len(values) > 0 {
		merged := map[string]interface{}{}
		for key, value := range values {
			merged[key] = value
		}
		override["values"] = merged
	}
	return override, nil
}

func printObject(obj interface{}) error {
	data, err := yaml.Marshal(obj)
	if err != nil {
		return err
	}
	printYAML(data)
	return nil
}
