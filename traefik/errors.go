package traefik

import "fmt"

// ValidationError reports a malformed routing policy.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// UnsupportedFeatureError reports a route field the v2 generator recognizes
// but does not implement.
type UnsupportedFeatureError struct {
	Route   string
	Feature string
	Value   string
}

func (e *UnsupportedFeatureError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("route %s: %s not supported yet for traefik v2", e.Route, e.Feature)
	}
	return fmt.Sprintf("route %s: %s not supported yet for traefik v2: %s", e.Route, e.Feature, e.Value)
}

// DuplicateNameError reports a route whose generated router or service name is
// already taken by another route of the same pass.
type DuplicateNameError struct {
	Route string
	Name  string
	Owner string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("route %s: name %s already used by route %s", e.Route, e.Name, e.Owner)
}
