// Package storage creates the persistent volumes and storage classes backing CKAN
// instances on GKE.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"
	corev1 "k8s.io/api/core/v1"
	storagev1 "k8s.io/api/storage/v1"
	"k8s.io/apimachinery/pkg/api/resource"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"

	"github.com/ckan-cloud/ckan-cloud-operator/kube"
)

const (
	StorageClassName     = "cca-storage"
	CKANStorageClassName = "cca-ckan"
)

var storageClassGVK = schema.GroupVersionKind{Group: "storage.k8s.io", Version: "v1", Kind: "StorageClass"}

// GenerateDiskName returns a new persistent disk name: "cc" followed by 24 hex chars.
func GenerateDiskName() (string, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "cc" + hex.EncodeToString(buf), nil
}

// VolumeClaim returns the PersistentVolume bound to the GCE disk and the claim
// reserving it.
func VolumeClaim(diskName string, sizeGB int, namespace string) (*corev1.PersistentVolume, *corev1.PersistentVolumeClaim) {
	size := resource.MustParse(fmt.Sprintf("%dG", sizeGB))
	empty := ""

	pv := &corev1.PersistentVolume{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolume"},
		ObjectMeta: metav1.ObjectMeta{Name: diskName},
		Spec: corev1.PersistentVolumeSpec{
			StorageClassName: "",
			Capacity:         corev1.ResourceList{corev1.ResourceStorage: size},
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			PersistentVolumeSource: corev1.PersistentVolumeSource{
				GCEPersistentDisk: &corev1.GCEPersistentDiskVolumeSource{PDName: diskName},
			},
		},
	}
	pvc := &corev1.PersistentVolumeClaim{
		TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "PersistentVolumeClaim"},
		ObjectMeta: metav1.ObjectMeta{Name: diskName, Namespace: namespace},
		Spec: corev1.PersistentVolumeClaimSpec{
			StorageClassName: &empty,
			VolumeName:       diskName,
			AccessModes:      []corev1.PersistentVolumeAccessMode{corev1.ReadWriteOnce},
			Resources: corev1.VolumeResourceRequirements{
				Requests: corev1.ResourceList{corev1.ResourceStorage: size},
			},
		},
	}
	return pv, pvc
}

// StorageClass returns the default gce-pd storage class.
func StorageClass() *storagev1.StorageClass {
	reclaim := corev1.PersistentVolumeReclaimDelete
	binding := storagev1.VolumeBindingImmediate
	return &storagev1.StorageClass{
		TypeMeta:          metav1.TypeMeta{APIVersion: "storage.k8s.io/v1", Kind: "StorageClass"},
		ObjectMeta:        metav1.ObjectMeta{Name: StorageClassName},
		Provisioner:       "kubernetes.io/gce-pd",
		ReclaimPolicy:     &reclaim,
		VolumeBindingMode: &binding,
		Parameters:        map[string]string{"type": "pd-standard"},
	}
}

// Manager applies storage objects to the cluster.
type Manager struct {
	applier kube.Applier
	logger  *zap.Logger
}

// NewManager creates a storage Manager.
func NewManager(applier kube.Applier, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{applier: applier, logger: logger}
}

// CreateVolume binds an existing GCE disk (or a newly named one when diskName is
// empty) and returns the pod volume source referencing the claim. Creating the disk
// itself is left to the cloud provider.
func (m *Manager) CreateVolume(ctx context.Context, diskName string, sizeGB int, namespace string) (*corev1.VolumeSource, error) {
	if diskName == "" {
		name, err := GenerateDiskName()
		if err != nil {
			return nil, fmt.Errorf("generating disk name: %w", err)
		}
		diskName = name
	}
	m.logger.Info("Creating persistent volume claim",
		zap.String("disk", diskName),
		zap.Int("size_gb", sizeGB),
		zap.String("namespace", namespace),
	)

	pv, pvc := VolumeClaim(diskName, sizeGB, namespace)
	for _, obj := range []runtime.Object{pv, pvc} {
		u, err := kube.FromObject(obj)
		if err != nil {
			return nil, err
		}
		if err := m.applier.Apply(ctx, u); err != nil {
			return nil, err
		}
	}
	return &corev1.VolumeSource{
		PersistentVolumeClaim: &corev1.PersistentVolumeClaimVolumeSource{ClaimName: diskName},
	}, nil
}

// EnsureStorageClasses applies the cca-storage class. It fails when the cca-ckan
// class is missing and deployNFS is nil; otherwise deployNFS is called to provide it.
func (m *Manager) EnsureStorageClasses(ctx context.Context, deployNFS func(context.Context) error) error {
	existing, err := m.applier.Get(ctx, storageClassGVK, "", CKANStorageClassName)
	if err != nil {
		return err
	}
	if existing == nil {
		if deployNFS == nil {
			return fmt.Errorf("missing %s storage class", CKANStorageClassName)
		}
		m.logger.Info("Deploying nfs client provisioner to provide storage class", zap.String("storage_class", CKANStorageClassName))
		if err := deployNFS(ctx); err != nil {
			return err
		}
	}

	class, err := kube.FromObject(StorageClass())
	if err != nil {
		return err
	}
	return m.applier.Apply(ctx, class)
}
