package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func machineType() *ResourceType {
	return &ResourceType{
		Name:     "machine",
		Provider: "test",
		Attributes: map[string]Attribute{
			"image":   {Type: TypeString, Required: true, Immutable: true},
			"size":    {Type: TypeString, Default: "small"},
			"secret":  {Type: TypeString, Sensitive: true},
			"address": {Type: TypeString, Computed: true},
		},
	}
}

func TestValidate_RequiredAttribute(t *testing.T) {
	rt := machineType()

	err := rt.Validate(map[string]any{"size": "large"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `required attribute "image"`)

	assert.NoError(t, rt.Validate(map[string]any{"image": "ami-1"}))
}

func TestValidate_UnknownAttribute(t *testing.T) {
	rt := machineType()

	err := rt.Validate(map[string]any{"image": "ami-1", "flavor": "odd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown attribute "flavor"`)
}

func TestValidate_ComputedAttributeRejected(t *testing.T) {
	rt := machineType()

	err := rt.Validate(map[string]any{"image": "ami-1", "address": "10.0.0.5"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "computed")
}

func TestApplyDefaults(t *testing.T) {
	rt := machineType()

	props := map[string]any{"image": "ami-1"}
	out := rt.ApplyDefaults(props)

	assert.Equal(t, "small", out["size"])
	assert.Equal(t, "ami-1", out["image"])
	// The input map is left alone.
	assert.NotContains(t, props, "size")

	// An explicit value wins over the default.
	out = rt.ApplyDefaults(map[string]any{"image": "ami-1", "size": "xl"})
	assert.Equal(t, "xl", out["size"])
}

func TestImmutableAttributes(t *testing.T) {
	rt := machineType()
	assert.Equal(t, []string{"image"}, rt.ImmutableAttributes())
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(machineType()))

	rt, err := reg.Get("machine")
	require.NoError(t, err)
	assert.Equal(t, "machine", rt.Name)

	_, err = reg.Get("unknown")
	assert.Error(t, err)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(machineType()))
	assert.Error(t, reg.Register(machineType()))
}

func TestBuiltinRegistry(t *testing.T) {
	reg := Builtin()

	vpc, err := reg.Get("aws_vpc")
	require.NoError(t, err)
	assert.True(t, vpc.Attributes["cidrBlock"].Required)
	assert.Contains(t, vpc.ImmutableAttributes(), "cidrBlock")

	db, err := reg.Get("aws_db_instance")
	require.NoError(t, err)
	assert.True(t, db.Attributes["masterPassword"].Sensitive)

	instance, err := reg.Get("aws_instance")
	require.NoError(t, err)
	assert.Contains(t, instance.ImmutableAttributes(), "imageId")
	assert.NotContains(t, instance.ImmutableAttributes(), "instanceType")

	assert.NotEmpty(t, reg.Names())
}
