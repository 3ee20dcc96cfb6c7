package routes

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/labels"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/client-go/dynamic"
	"sigs.k8s.io/yaml"
)

// FromUnstructured decodes a CkanCloudRoute object.
func FromUnstructured(obj *unstructured.Unstructured) (Route, error) {
	route := Route{
		Name:   obj.GetName(),
		Labels: obj.GetLabels(),
	}

	spec, found, err := unstructured.NestedMap(obj.Object, "spec")
	if err != nil {
		return Route{}, fmt.Errorf("route %s: invalid spec: %w", obj.GetName(), err)
	}
	if !found {
		return route, nil
	}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(spec, &route.Spec); err != nil {
		return Route{}, fmt.Errorf("route %s: decoding spec: %w", obj.GetName(), err)
	}
	return route, nil
}

// Lister reads routes from the cluster.
type Lister struct {
	client    dynamic.Interface
	namespace string
	logger    *zap.Logger
}

// NewLister creates a Lister for routes in namespace.
func NewLister(client dynamic.Interface, namespace string, logger *zap.Logger) *Lister {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lister{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// List returns the routes of routerName (all routes when empty), sorted by name.
func (l *Lister) List(ctx context.Context, routerName string) ([]Route, error) {
	opts := metav1.ListOptions{}
	if routerName != "" {
		opts.LabelSelector = labels.Set{LabelRouterName: routerName}.String()
	}

	list, err := l.client.Resource(GVR).Namespace(l.namespace).List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing routes: %w", err)
	}

	routes := make([]Route, 0, len(list.Items))
	for i := range list.Items {
		route, err := FromUnstructured(&list.Items[i])
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool { return routes[i].Name < routes[j].Name })

	l.logger.Debug("Listed routes",
		zap.String("namespace", l.namespace),
		zap.String("router", routerName),
		zap.Int("count", len(routes)),
	)
	return routes, nil
}

// LoadFile reads routes from a YAML file holding either a sequence of route
// resources or a List with items. File order is preserved.
func LoadFile(path string) ([]Route, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading routes file: %w", err)
	}
	return Parse(data)
}

// Parse decodes routes from YAML.
func Parse(data []byte) ([]Route, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing routes: %w", err)
	}

	var resources []resource
	switch raw.(type) {
	case nil:
		return nil, nil
	case []interface{}:
		if err := yaml.Unmarshal(data, &resources); err != nil {
			return nil, fmt.Errorf("parsing routes: %w", err)
		}
	default:
		var list resourceList
		if err := yaml.Unmarshal(data, &list); err != nil {
			return nil, fmt.Errorf("parsing routes: %w", err)
		}
		resources = list.Items
	}

	routes := make([]Route, 0, len(resources))
	for _, res := range resources {
		routes = append(routes, Route{
			Name:   res.Metadata.Name,
			Labels: res.Metadata.Labels,
			Spec:   res.Spec,
		})
	}
	return routes, nil
}
