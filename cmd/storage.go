package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ckan-cloud/ckan-cloud-operator/apps"
	"github.com/ckan-cloud/ckan-cloud-operator/storage"
)

// options for the storage commands
var (
	nfsServerIP   string
	nfsServerPath string
	diskName      string
	diskSizeGB    int
)

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Manage cluster storage",
}

var storageInitCmd = &cobra.Command{
	Use:   "initialize",
	Short: "Create the cluster storage classes",
	Long: `Create the cca-storage class. The cca-ckan class must exist, or be
provided by deploying the nfs client provisioner with --nfs-server-ip.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := clients()
		if err != nil {
			return err
		}

		var deployNFS func(context.Context) error
		if nfsServerIP != "" {
			registry := apps.NewDefaultRegistry(c.Applier, logger)
			deployNFS = func(ctx context.Context) error {
				_, err := registry.Update(ctx, apps.Instance{ID: storage.CKANStorageClassName, Spec: apps.Spec{
					"app-type":        apps.NFSClientProvisionerType,
					"namespace":       namespace,
					"storageclass":    storage.CKANStorageClassName,
					"nfs-server-ip":   nfsServerIP,
					"nfs-server-path": nfsServerPath,
				}}, nil)
				return err
			}
		}
		return storage.NewManager(c.Applier, logger).EnsureStorageClasses(commandContext(cmd), deployNFS)
	},
}

var volumeCmd = &cobra.Command{
	Use:   "create-volume",
	Short: "Bind a GCE persistent disk to a new claim",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := clients()
		if err != nil {
			return err
		}
		source, err := storage.NewManager(c.Applier, logger).CreateVolume(commandContext(cmd), diskName, diskSizeGB, namespace)
		if err != nil {
			return err
		}
		logger.Info("Created volume", zap.String("claim", source.PersistentVolumeClaim.ClaimName))
		return printObject(source)
	},
}

func init() {
	storageInitCmd.Flags().StringVar(&nfsServerIP, "nfs-server-ip", "", "NFS server backing the cca-ckan storage class")
	storageInitCmd.Flags().StringVar(&nfsServerPath, "nfs-server-path", "", "exported NFS path")
	volumeCmd.Flags().StringVar(&diskName, "disk-name", "", "existing GCE disk name, generated when empty")
	volumeCmd.Flags().IntVar(&diskSizeGB, "size", 10, "disk size in GB")

	storageCmd.AddCommand(storageInitCmd, volumeCmd)
	RootCmd.AddCommand(storageCmd)
}
