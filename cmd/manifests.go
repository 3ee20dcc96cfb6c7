package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ckan-cloud/ckan-cloud-operator/kube"
)

var manifestsCmd = &cobra.Command{
	Use:   "manifests",
	Short: "Apply or delete Kubernetes manifests",
	Long: `Apply or delete the objects of a multi-document YAML file, the way
kubectl apply -f and kubectl delete -f do. Objects are created or updated in
the namespace set in their metadata.`,
}

var manifestsApplyCmd = &cobra.Command{
	Use:   "apply FILE",
	Short: "Create or update the objects of FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManifests(cmd, args[0], false)
	},
}

var manifestsDeleteCmd = &cobra.Command{
	Use:   "delete FILE",
	Short: "Delete the objects of FILE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runManifests(cmd, args[0], true)
	},
}

func init() {
	manifestsCmd.AddCommand(manifestsApplyCmd, manifestsDeleteCmd)
	RootCmd.AddCommand(manifestsCmd)
}

func runManifests(cmd *cobra.Command, path string, remove bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	c, err := clients()
	if err != nil {
		return err
	}
	return applyManifests(commandContext(cmd), c.Applier, data, remove)
}

// applyManifests applies or deletes every object of data in order, stopping at
// the first failure.
func applyManifests(ctx context.Context, applier kube.Applier, data []byte, remove bool) error {
	objects, err := kube.DecodeManifests(data)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if remove {
			err = applier.Delete(ctx, obj)
		} else {
			err = applier.Apply(ctx, obj)
		}
		if err != nil {
			return fmt.Errorf("%s %s: %w", obj.GetKind(), obj.GetName(), err)
		}
	}
	logger.Info("Processed manifests", zap.Int("objects", len(objects)), zap.Bool("delete", remove))
	return nil
}
