package ir

import "fmt"

// Resource represents a single managed resource.
type Resource struct {
	Type      string     `pkl:"type" validate:"required"` // e.g. "aws_vpc"
	Name      string     `pkl:"name" validate:"required"`
	Provider  string     `pkl:"provider" validate:"required"`
	Lifecycle *Lifecycle `pkl:"lifecycle"`
	DependsOn []string   `pkl:"dependsOn"`
	// Timeout bounds a single provider operation, e.g. "10m".
	Timeout    string         `pkl:"timeout"`
	Properties map[string]any `pkl:"properties"`
}

// Addr returns the stable logical address of the resource (type.name).
func (r *Resource) Addr() string {
	return fmt.Sprintf("%s.%s", r.Type, r.Name)
}

type Lifecycle struct {
	CreateBeforeDestroy bool     `pkl:"createBeforeDestroy"`
	PreventDestroy      bool     `pkl:"preventDestroy"`
	IgnoreChanges       []string `pkl:"ignoreChanges"`
}
