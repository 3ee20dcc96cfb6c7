package apps

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

// memoryApplier keeps applied objects keyed by kind/namespace/name.
type memoryApplier struct {
	objects map[string]*unstructured.Unstructured
	order   []string
}

func newMemoryApplier() *memoryApplier {
	return &memoryApplier{objects: map[string]*unstructured.Unstructured{}}
}

func objectKey(kind, namespace, name string) string {
	return kind + "/" + namespace + "/" + name
}

func (m *memoryApplier) Apply(ctx context.Context, obj *unstructured.Unstructured) error {
	key := objectKey(obj.GetKind(), obj.GetNamespace(), obj.GetName())
	m.objects[key] = obj
	m.order = append(m.order, key)
	return nil
}

func (m *memoryApplier) Get(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) (*unstructured.Unstructured, error) {
	return m.objects[objectKey(gvk.Kind, namespace, name)], nil
}

func (m *memoryApplier) Delete(ctx context.Context, obj *unstructured.Unstructured) error {
	delete(m.objects, objectKey(obj.GetKind(), obj.GetNamespace(), obj.GetName()))
	return nil
}

func nfsInstance() Instance {
	return Instance{
		ID: "nfs-client-provisioner",
		Spec: Spec{
			"app-type":      NFSClientProvisionerType,
			"namespace":     "ckan-cloud",
			"storageclass":  "cca-ckan",
			"nfs-server-ip": "10.0.0.2",
		},
	}
}

func TestApplyOverrideSpec(t *testing.T) {
	spec := Spec{
		"namespace": "ckan-cloud",
		"values":    map[string]interface{}{"a": 1, "b": 2},
	}
	override := Spec{
		"namespace": "other",
		"values":    map[string]interface{}{"b": 3, "c": 4},
	}

	result := ApplyOverrideSpec(spec, override)
	assert.Equal(t, "other", result["namespace"])
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 3, "c": 4}, result["values"])

	// the input spec is not modified
	assert.Equal(t, "ckan-cloud", spec["namespace"])
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, spec["values"])
}

func TestRegistryUnknownType(t *testing.T) {
	registry := NewDefaultRegistry(newMemoryApplier(), nil)
	assert.Equal(t, []string{NFSClientProvisionerType}, registry.Types())

	_, err := registry.Update(context.Background(), Instance{ID: "x", Spec: Spec{"app-type": "solr"}}, nil)
	var unknown *UnknownAppTypeError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "solr", unknown.AppType)

	err = registry.Delete(context.Background(), Instance{ID: "x"})
	assert.True(t, errors.As(err, &unknown))
}

func TestNFSClientProvisioner(t *testing.T) {
	ctx := context.Background()
	applier := newMemoryApplier()
	registry := NewDefaultRegistry(applier, nil)

	_, err := registry.Update(ctx, nfsInstance(), Spec{"nfs-server-path": "/exports", "archive-on-delete": "true"})
	require.NoError(t, err)

	assert.Len(t, applier.objects, 7)
	assert.Equal(t, objectKey("ServiceAccount", "ckan-cloud", "nfs-client-provisioner"), applier.order[0])

	deployment := applier.objects[objectKey("Deployment", "ckan-cloud", "nfs-client-provisioner")]
	require.NotNil(t, deployment)
	containers, _, err := unstructured.NestedSlice(deployment.Object, "spec", "template", "spec", "containers")
	require.NoError(t, err)
	require.Len(t, containers, 1)
	env := containers[0].(map[string]interface{})["env"].([]interface{})
	assert.Contains(t, env, map[string]interface{}{"name": "NFS_SERVER", "value": "10.0.0.2"})
	assert.Contains(t, env, map[string]interface{}{"name": "NFS_PATH", "value": "/exports"})

	class := applier.objects[objectKey("StorageClass", "", "cca-ckan")]
	require.NotNil(t, class)
	assert.Equal(t, "fuseim.pri/ifs", class.Object["provisioner"])
	archive, _, _ := unstructured.NestedString(class.Object, "parameters", "archiveOnDelete")
	assert.Equal(t, "true", archive)

	found, err := registry.Get(ctx, nfsInstance())
	require.NoError(t, err)
	assert.Contains(t, found, "StorageClass/cca-ckan")

	require.NoError(t, registry.Delete(ctx, nfsInstance()))
	assert.Empty(t, applier.objects)
}

func TestNFSClientProvisionerMissingKeys(t *testing.T) {
	instance := nfsInstance()
	delete(instance.Spec, "nfs-server-ip")

	err := NewNFSClientProvisioner(newMemoryApplier(), nil).Deploy(context.Background(), instance)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nfs-server-ip")
}
