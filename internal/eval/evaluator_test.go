package eval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/ir"
	"github.com/weft-io/weft/internal/schema"
)

func resolveSchemas(t *testing.T) *schema.Registry {
	t.Helper()
	reg := schema.NewRegistry()
	require.NoError(t, reg.Register(&schema.ResourceType{
		Name:     "test_thing",
		Provider: "test",
		Attributes: map[string]schema.Attribute{
			"size":   {Type: schema.TypeString, Required: true},
			"color":  {Type: schema.TypeString, Default: "grey"},
			"parent": {Type: schema.TypeString},
		},
	}))
	return reg
}

func TestResolve_AppliesDefaultsAndValidates(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:       "test_thing",
				Name:       "a",
				Provider:   "test",
				Properties: map[string]any{"size": "small"},
			},
		},
	}

	require.NoError(t, Resolve(cfg, nil, resolveSchemas(t)))
	assert.Equal(t, "grey", cfg.Resources[0].Properties["color"])
}

func TestResolve_MissingRequiredAttribute(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:       "test_thing",
				Name:       "a",
				Provider:   "test",
				Properties: map[string]any{},
			},
		},
	}

	err := Resolve(cfg, nil, resolveSchemas(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required attribute "size"`)
}

func TestResolve_UnknownResourceType(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "mystery_box", Name: "a", Provider: "test"},
		},
	}

	err := Resolve(cfg, nil, resolveSchemas(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource type")
}

func TestResolve_UnresolvedReference(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:     "test_thing",
				Name:     "a",
				Provider: "test",
				Properties: map[string]any{
					"size":   "small",
					"parent": "ref://test_thing/ghost/id",
				},
			},
		},
	}

	err := Resolve(cfg, nil, resolveSchemas(t))
	require.Error(t, err)

	var unresolved *UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "test_thing.a", unresolved.Source)
	assert.Equal(t, "test_thing.ghost", unresolved.Reference)
}

func TestResolve_UnresolvedDependsOn(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:       "test_thing",
				Name:       "a",
				Provider:   "test",
				DependsOn:  []string{"test_thing.ghost"},
				Properties: map[string]any{"size": "small"},
			},
		},
	}

	err := Resolve(cfg, nil, resolveSchemas(t))
	require.Error(t, err)

	var unresolved *UnresolvedReferenceError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "test_thing.ghost", unresolved.Reference)
}

func TestResolve_ValidReferences(t *testing.T) {
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{
				Type:       "test_thing",
				Name:       "parent",
				Provider:   "test",
				Properties: map[string]any{"size": "small"},
			},
			{
				Type:     "test_thing",
				Name:     "child",
				Provider: "test",
				Properties: map[string]any{
					"size":   "small",
					"parent": "ref://test_thing/parent/id",
				},
			},
		},
	}

	require.NoError(t, Resolve(cfg, nil, resolveSchemas(t)))
}
