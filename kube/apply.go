package kube

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	"k8s.io/apimachinery/pkg/api/meta"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
	utilyaml "k8s.io/apimachinery/pkg/util/yaml"
	"k8s.io/client-go/dynamic"
	"sigs.k8s.io/yaml"
)

// Applier is the kubectl-equivalent used to manage cluster objects.
type Applier interface {
	// Apply creates obj or updates it in place.
	Apply(ctx context.Context, obj *unstructured.Unstructured) error
	// Get returns nil, nil when the object does not exist.
	Get(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) (*unstructured.Unstructured, error)
	// Delete ignores objects that do not exist.
	Delete(ctx context.Context, obj *unstructured.Unstructured) error
}

// DynamicApplier implements Applier with the dynamic client.
type DynamicApplier struct {
	client dynamic.Interface
	mapper meta.RESTMapper
	logger *zap.Logger
}

// NewDynamicApplier creates a DynamicApplier resolving kinds through mapper.
func NewDynamicApplier(client dynamic.Interface, mapper meta.RESTMapper, logger *zap.Logger) *DynamicApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DynamicApplier{
		client: client,
		mapper: mapper,
		logger: logger,
	}
}

func (a *DynamicApplier) resource(gvk schema.GroupVersionKind, namespace string) (dynamic.ResourceInterface, error) {
	mapping, err := a.mapper.RESTMapping(gvk.GroupKind(), gvk.Version)
	if err != nil {
		return nil, fmt.Errorf("mapping %s: %w", gvk, err)
	}
	if mapping.Scope.Name() == meta.RESTScopeNameNamespace {
		return a.client.Resource(mapping.Resource).Namespace(namespace), nil
	}
	return a.client.Resource(mapping.Resource), nil
}

// Apply creates obj or updates it in place.
func (a *DynamicApplier) Apply(ctx context.Context, obj *unstructured.Unstructured) error {
	gvk := obj.GroupVersionKind()
	res, err := a.resource(gvk, obj.GetNamespace())
	if err != nil {
		return err
	}

	existing, err := res.Get(ctx, obj.GetName(), metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		a.logger.Info("Creating object", zap.String("kind", gvk.Kind), zap.String("name", obj.GetName()))
		if _, err := res.Create(ctx, obj, metav1.CreateOptions{}); err != nil {
			return fmt.Errorf("creating %s %s: %w", gvk.Kind, obj.GetName(), err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("getting %s %s: %w", gvk.Kind, obj.GetName(), err)
	}

	a.logger.Info("Updating object", zap.String("kind", gvk.Kind), zap.String("name", obj.GetName()))
	obj.SetResourceVersion(existing.GetResourceVersion())
	if _, err := res.Update(ctx, obj, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("updating %s %s: %w", gvk.Kind, obj.GetName(), err)
	}
	return nil
}

// Get returns nil, nil when the object does not exist.
func (a *DynamicApplier) Get(ctx context.Context, gvk schema.GroupVersionKind, namespace, name string) (*unstructured.Unstructured, error) {
	res, err := a.resource(gvk, namespace)
	if err != nil {
		return nil, err
	}
	obj, err := res.Get(ctx, name, metav1.GetOptions{})
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting %s %s: %w", gvk.Kind, name, err)
	}
	return obj, nil
}

// Delete ignores objects that do not exist.
func (a *DynamicApplier) Delete(ctx context.Context, obj *unstructured.Unstructured) error {
	gvk := obj.GroupVersionKind()
	res, err := a.resource(gvk, obj.GetNamespace())
	if err != nil {
		return err
	}
	a.logger.Info("Deleting object", zap.String("kind", gvk.Kind), zap.String("name", obj.GetName()))
	err = res.Delete(ctx, obj.GetName(), metav1.DeleteOptions{})
	if err != nil && !apierrors.IsNotFound(err) {
		return fmt.Errorf("deleting %s %s: %w", gvk.Kind, obj.GetName(), err)
	}
	return nil
}

// DecodeManifests splits multi-document YAML into objects, skipping empty documents.
func DecodeManifests(data []byte) ([]*unstructured.Unstructured, error) {
	reader := utilyaml.NewYAMLReader(bufio.NewReader(bytes.NewReader(data)))

	var objects []*unstructured.Unstructured
	for i := 0; ; i++ {
		doc, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return objects, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading document %d: %w", i, err)
		}
		if len(bytes.TrimSpace(doc)) == 0 {
			continue
		}
		object := map[string]interface{}{}
		if err := yaml.Unmarshal(doc, &object); err != nil {
			return nil, fmt.Errorf("decoding document %d: %w", i, err)
		}
		if len(object) == 0 {
			continue
		}
		objects = append(objects, &unstructured.Unstructured{Object: object})
	}
}

// FromObject converts a typed object into an unstructured one for Apply.
// The object must carry its TypeMeta.
func FromObject(obj runtime.Object) (*unstructured.Unstructured, error) {
	object, err := runtime.DefaultUnstructuredConverter.ToUnstructured(obj)
	if err != nil {
		return nil, fmt.Errorf("converting %T: %w", obj, err)
	}
	return &unstructured.Unstructured{Object: object}, nil
}
