package apps

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	rbacv1 "k8s.io/api/rbac/v1"
	storagev1 "k8s.io/api/storage/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"

	"github.com/ckan-cloud/ckan-cloud-operator/kube"
)

const (
	NFSClientProvisionerType = "nfs-client-provisioner"

	nfsProvisionerName  = "fuseim.pri/ifs"
	nfsProvisionerImage = "quay.io/external_storage/nfs-client-provisioner:latest"
	nfsDefaultPath      = "/ifs/kubernetes"
)

// NFSClientProvisioner deploys the NFS client provisioner and its storage class.
type NFSClientProvisioner struct {
	applier kube.Applier
	logger  *zap.Logger
}

// NewNFSClientProvisioner creates the nfs-client-provisioner app type.
func NewNFSClientProvisioner(applier kube.Applier, logger *zap.Logger) *NFSClientProvisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NFSClientProvisioner{
		applier: applier,
		logger:  logger,
	}
}

type nfsValues struct {
	namespace       string
	storageClass    string
	serverIP        string
	serverPath      string
	archiveOnDelete string
}

func stringValue(spec Spec, key, def string) string {
	if value, ok := spec[key].(string); ok && value != "" {
		return value
	}
	return def
}

func nfsValuesOf(instance Instance) (nfsValues, error) {
	values := nfsValues{
		namespace:       stringValue(instance.Spec, "namespace", ""),
		storageClass:    stringValue(instance.Spec, "storageclass", ""),
		serverIP:        stringValue(instance.Spec, "nfs-server-ip", ""),
		serverPath:      stringValue(instance.Spec, "nfs-server-path", nfsDefaultPath),
		archiveOnDelete: stringValue(instance.Spec, "archive-on-delete", "false"),
	}
	for key, value := range map[string]string{
		"namespace":     values.namespace,
		"storageclass":  values.storageClass,
		"nfs-server-ip": values.serverIP,
	} {
		if value == "" {
			return nfsValues{}, fmt.Errorf("%s: missing spec key %s", instance.ID, key)
		}
	}
	return values, nil
}

func (p *NFSClientProvisioner) objects(instance Instance) ([]*unstructured.Unstructured, error) {
	values, err := nfsValuesOf(instance)
	if err != nil {
		return nil, err
	}

	labels := map[string]string{"app": NFSClientProvisionerType}
	replicas := int32(1)
	typed := []runtime.Object{
		&corev1.ServiceAccount{
			TypeMeta:   metav1.TypeMeta{APIVersion: "v1", Kind: "ServiceAccount"},
			ObjectMeta: metav1.ObjectMeta{Name: NFSClientProvisionerType, Namespace: values.namespace},
		},
		&rbacv1.ClusterRole{
			TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "ClusterRole"},
			ObjectMeta: metav1.ObjectMeta{Name: "nfs-client-provisioner-runner"},
			Rules: []rbacv1.PolicyRule{
				{APIGroups: []string{""}, Resources: []string{"persistentvolumes"}, Verbs: []string{"get", "list", "watch", "create", "delete"}},
				{APIGroups: []string{""}, Resources: []string{"persistentvolumeclaims"}, Verbs: []string{"get", "list", "watch", "update"}},
				{APIGroups: []string{"storage.k8s.io"}, Resources: []string{"storageclasses"}, Verbs: []string{"get", "list", "watch"}},
				{APIGroups: []string{""}, Resources: []string{"events"}, Verbs: []string{"create", "update", "patch"}},
			},
		},
		&rbacv1.ClusterRoleBinding{
			TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "ClusterRoleBinding"},
			ObjectMeta: metav1.ObjectMeta{Name: "run-nfs-client-provisioner"},
			Subjects:   []rbacv1.Subject{{Kind: "ServiceAccount", Name: NFSClientProvisionerType, Namespace: values.namespace}},
			RoleRef:    rbacv1.RoleRef{Kind: "ClusterRole", Name: "nfs-client-provisioner-runner", APIGroup: "rbac.authorization.k8s.io"},
		},
		&rbacv1.Role{
			TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "Role"},
			ObjectMeta: metav1.ObjectMeta{Name: "leader-locking-nfs-client-provisioner", Namespace: values.namespace},
			Rules: []rbacv1.PolicyRule{
				{APIGroups: []string{""}, Resources: []string{"endpoints"}, Verbs: []string{"get", "list", "watch", "create", "update", "patch"}},
			},
		},
		&rbacv1.RoleBinding{
			TypeMeta:   metav1.TypeMeta{APIVersion: "rbac.authorization.k8s.io/v1", Kind: "RoleBinding"},
			ObjectMeta: metav1.ObjectMeta{Name: "leader-locking-nfs-client-provisioner", Namespace: values.namespace},
			Subjects:   []rbacv1.Subject{{Kind: "ServiceAccount", Name: NFSClientProvisionerType, Namespace: values.namespace}},
			RoleRef:    rbacv1.RoleRef{Kind: "Role", Name: "leader-locking-nfs-client-provisioner", APIGroup: "rbac.authorization.k8s.io"},
		},
		&appsv1.Deployment{
			TypeMeta:   metav1.TypeMeta{APIVersion: "apps/v1", Kind: "Deployment"},
			ObjectMeta: metav1.ObjectMeta{Name: NFSClientProvisionerType, Namespace: values.namespace, Labels: labels},
			Spec: appsv1.DeploymentSpec{
				Replicas: &replicas,
				Strategy: appsv1.DeploymentStrategy{Type: appsv1.RecreateDeploymentStrategyType},
				Selector: &metav1.LabelSelector{MatchLabels: labels},
				Template: corev1.PodTemplateSpec{
					ObjectMeta: metav1.ObjectMeta{Labels: labels},
					Spec: corev1.PodSpec{
						ServiceAccountName: NFSClientProvisionerType,
						Containers: []corev1.Container{{
							Name:         NFSClientProvisionerType,
							Image:        nfsProvisionerImage,
							VolumeMounts: []corev1.VolumeMount{{Name: "nfs-client-root", MountPath: "/persistentvolumes"}},
							Env: []corev1.EnvVar{
								{Name: "PROVISIONER_NAME", Value: nfsProvisionerName},
								{Name: "NFS_SERVER", Value: values.serverIP},
								{Name: "NFS_PATH", Value: values.serverPath},
							},
						}},
						Volumes: []corev1.Volume{{
							Name: "nfs-client-root",
							VolumeSource: corev1.VolumeSource{
								NFS: &corev1.NFSVolumeSource{Server: values.serverIP, Path: values.serverPath},
							},
						}},
					},
				},
			},
		},
		&storagev1.StorageClass{
			TypeMeta:    metav1.TypeMeta{APIVersion: "storage.k8s.io/v1", Kind: "StorageClass"},
			ObjectMeta:  metav1.ObjectMeta{Name: values.storageClass},
			Provisioner: nfsProvisionerName,
			Parameters:  map[string]string{"archiveOnDelete": values.archiveOnDelete},
		},
	}

	objects := make([]*unstructured.Unstructured, 0, len(typed))
	for _, obj := range typed {
		u, err := kube.FromObject(obj)
		if err != nil {
			return nil, err
		}
		objects = append(objects, u)
	}
	return objects, nil
}

// PreUpdateHook has nothing to prepare.
func (p *NFSClientProvisioner) PreUpdateHook(ctx context.Context, instance Instance, res map[string]interface{}) error {
	return nil
}

// Deploy applies the provisioner objects in dependency order.
func (p *NFSClientProvisioner) Deploy(ctx context.Context, instance Instance) error {
	objects, err := p.objects(instance)
	if err != nil {
		return err
	}
	for _, obj := range objects {
		if err := p.applier.Apply(ctx, obj); err != nil {
			return err
		}
	}
	p.logger.Info("Deployed nfs client provisioner",
		zap.String("instance", instance.ID),
		zap.Int("objects", len(objects)),
	)
	return nil
}

// Delete removes the provisioner objects in reverse order.
func (p *NFSClientProvisioner) Delete(ctx context.Context, instance Instance) error {
	objects, err := p.objects(instance)
	if err != nil {
		return err
	}
	for i := len(objects) - 1; i >= 0; i-- {
		if err := p.applier.Delete(ctx, objects[i]); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the provisioner objects currently in the cluster.
func (p *NFSClientProvisioner) Get(ctx context.Context, instance Instance) (map[string]interface{}, error) {
	objects, err := p.objects(instance)
	if err != nil {
		return nil, err
	}
	found := map[string]interface{}{}
	for _, obj := range objects {
		existing, err := p.applier.Get(ctx, obj.GroupVersionKind(), obj.GetNamespace(), obj.GetName())
		if err != nil {
			return nil, err
		}
		if existing != nil {
			found[obj.GetKind()+"/"+obj.GetName()] = existing.Object
		}
	}
	return found, nil
}
