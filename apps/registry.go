// Package apps deploys auxiliary cluster applications by app type.
package apps

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/ckan-cloud/ckan-cloud-operator/kube"
)

// Spec is the free-form spec of an app instance.
type Spec map[string]interface{}

// Instance is one app instance to deploy.
type Instance struct {
	ID   string
	Spec Spec
}

// AppType deploys and manages instances of one app type.
type AppType interface {
	Deploy(ctx context.Context, instance Instance) error
	Delete(ctx context.Context, instance Instance) error
	// Get returns the deployed objects of the instance keyed by "<kind>/<name>".
	Get(ctx context.Context, instance Instance) (map[string]interface{}, error)
	// PreUpdateHook may record values in res before Deploy runs.
	PreUpdateHook(ctx context.Context, instance Instance, res map[string]interface{}) error
}

// UnknownAppTypeError is returned for an app type tag with no registered AppType.
type UnknownAppTypeError struct {
	AppType string
}

func (e *UnknownAppTypeError) Error() string {
	return fmt.Sprintf("unknown app type: %q", e.AppType)
}

// Registry maps app type tags to implementations.
type Registry struct {
	types  map[string]AppType
	logger *zap.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		types:  make(map[string]AppType),
		logger: logger,
	}
}

// Register adds appType under tag, replacing any previous registration.
func (r *Registry) Register(tag string, appType AppType) {
	r.types[tag] = appType
}

// Types returns the registered tags in sorted order.
func (r *Registry) Types() []string {
	tags := make([]string, 0, len(r.types))
	for tag := range r.types {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Lookup returns the AppType registered for tag.
func (r *Registry) Lookup(tag string) (AppType, error) {
	appType, ok := r.types[tag]
	if !ok {
		return nil, &UnknownAppTypeError{AppType: tag}
	}
	return appType, nil
}

// appTypeOf returns the "app-type" key of the instance spec.
func appTypeOf(instance Instance) string {
	tag, _ := instance.Spec["app-type"].(string)
	return tag
}

// Update runs the pre-update hook with override applied and then deploys the instance.
// The override is not persisted.
func (r *Registry) Update(ctx context.Context, instance Instance, override Spec) (map[string]interface{}, error) {
	instance.Spec = ApplyOverrideSpec(instance.Spec, override)
	tag := appTypeOf(instance)
	appType, err := r.Lookup(tag)
	if err != nil {
		return nil, err
	}

	r.logger.Info("Running app pre update hook", zap.String("app_type", tag), zap.String("instance", instance.ID))
	res := map[string]interface{}{}
	if err := appType.PreUpdateHook(ctx, instance, res); err != nil {
		return nil, fmt.Errorf("%s pre update hook: %w", tag, err)
	}

	r.logger.Info("Deploying app instance", zap.String("app_type", tag), zap.String("instance", instance.ID))
	if err := appType.Deploy(ctx, instance); err != nil {
		return nil, fmt.Errorf("deploying %s: %w", instance.ID, err)
	}
	return res, nil
}

// Delete removes the instance through its app type.
func (r *Registry) Delete(ctx context.Context, instance Instance) error {
	appType, err := r.Lookup(appTypeOf(instance))
	if err != nil {
		return err
	}
	return appType.Delete(ctx, instance)
}

// Get returns the deployed objects of the instance.
func (r *Registry) Get(ctx context.Context, instance Instance) (map[string]interface{}, error) {
	appType, err := r.Lookup(appTypeOf(instance))
	if err != nil {
		return nil, err
	}
	return appType.Get(ctx, instance)
}

// ApplyOverrideSpec returns a copy of spec with override applied. Override keys replace
// spec keys, except "values" which is merged key by key.
func ApplyOverrideSpec(spec, override Spec) Spec {
	result := make(Spec, len(spec)+len(override))
	for k, v := range spec {
		result[k] = v
	}
	for k, v := range override {
		if k != "values" {
			result[k] = v
			continue
		}
		merged := map[string]interface{}{}
		if existing, ok := result["values"].(map[string]interface{}); ok {
			for vk, vv := range existing {
				merged[vk] = vv
			}
		}
		if values, ok := v.(map[string]interface{}); ok {
			for vk, vv := range values {
				merged[vk] = vv
			}
		}
		result["values"] = merged
	}
	return result
}

// NewDefaultRegistry returns a Registry with every built-in app type.
func NewDefaultRegistry(applier kube.Applier, logger *zap.Logger) *Registry {
	registry := NewRegistry(logger)
	registry.Register(NFSClientProvisionerType, NewNFSClientProvisioner(applier, logger))
	return registry
}
