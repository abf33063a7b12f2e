// Package schema holds the process-wide registry of resource type
// schemas. A schema names the attributes a resource type accepts,
// which of them are required, their defaults, and which ones cannot be
// changed in place.
package schema

import (
	"fmt"
	"sort"
	"sync"
)

// AttrType is the semantic type of a resource attribute.
type AttrType string

const (
	TypeString AttrType = "string"
	TypeNumber AttrType = "number"
	TypeBool   AttrType = "bool"
	TypeList   AttrType = "list"
	TypeMap    AttrType = "map"
)

// Attribute describes a single attribute of a resource type.
type Attribute struct {
	Type     AttrType
	Required bool
	// Default is applied when the template omits the attribute.
	Default any
	// Immutable attributes cannot be updated in place; a diff on one
	// forces the resource to be replaced.
	Immutable bool
	// Sensitive values are redacted in plan output and logs.
	Sensitive bool
	// Computed attributes are assigned by the provider and never set
	// from the template.
	Computed bool
}

// ResourceType is a registered schema. Instances are immutable once
// registered.
type ResourceType struct {
	Name       string
	Provider   string
	Attributes map[string]Attribute
}

// ImmutableAttributes returns the sorted names of attributes that
// force replacement when changed.
func (rt *ResourceType) ImmutableAttributes() []string {
	var names []string
	for name, attr := range rt.Attributes {
		if attr.Immutable {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate checks resolved properties against the schema: required
// attributes must be present and no unknown attributes are accepted.
// Reference placeholders satisfy any declared type.
func (rt *ResourceType) Validate(properties map[string]any) error {
	for name, attr := range rt.Attributes {
		if attr.Required {
			if _, ok := properties[name]; !ok {
				return fmt.Errorf("resource type %s: required attribute %q is missing", rt.Name, name)
			}
		}
	}
	for name := range properties {
		attr, ok := rt.Attributes[name]
		if !ok {
			return fmt.Errorf("resource type %s: unknown attribute %q", rt.Name, name)
		}
		if attr.Computed {
			return fmt.Errorf("resource type %s: attribute %q is computed and cannot be set", rt.Name, name)
		}
	}
	return nil
}

// ApplyDefaults returns a copy of properties with schema defaults
// filled in for omitted attributes.
func (rt *ResourceType) ApplyDefaults(properties map[string]any) map[string]any {
	out := make(map[string]any, len(properties))
	for k, v := range properties {
		out[k] = v
	}
	for name, attr := range rt.Attributes {
		if attr.Default == nil {
			continue
		}
		if _, ok := out[name]; !ok {
			out[name] = attr.Default
		}
	}
	return out
}

// Registry maps resource type names to their schemas.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*ResourceType
}

func NewRegistry() *Registry {
	return &Registry{types: make(map[string]*ResourceType)}
}

// Register adds a resource type. Registering the same name twice is an
// error; schemas never change after startup.
func (r *Registry) Register(rt *ResourceType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[rt.Name]; exists {
		return fmt.Errorf("resource type already registered: %s", rt.Name)
	}
	r.types[rt.Name] = rt
	return nil
}

// Get returns the schema for a resource type name.
func (r *Registry) Get(name string) (*ResourceType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rt, ok := r.types[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource type: %s", name)
	}
	return rt, nil
}

// Names returns all registered type names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.types))
	for name := range r.types {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
