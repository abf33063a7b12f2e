package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRef(t *testing.T) {
	tests := []struct {
		input string
		want  Ref
		ok    bool
	}{
		{"ref://aws_vpc/main/id", Ref{Type: "aws_vpc", Name: "main", Attribute: "id"}, true},
		{"ref://aws_db_instance/primary/endpoint", Ref{Type: "aws_db_instance", Name: "primary", Attribute: "endpoint"}, true},
		{"not-a-ref", Ref{}, false},
		{"ref://", Ref{}, false},
		{"ref://aws_vpc/main", Ref{}, false},
		{"ref:///main/id", Ref{}, false},
		{"ref://aws_vpc//id", Ref{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseRef(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRefAddrAndString(t *testing.T) {
	ref := Ref{Type: "aws_subnet", Name: "web", Attribute: "id"}
	assert.Equal(t, "aws_subnet.web", ref.Addr())
	assert.Equal(t, "ref://aws_subnet/web/id", ref.String())

	roundTrip, ok := ParseRef(ref.String())
	require.True(t, ok)
	assert.Equal(t, ref, roundTrip)
}

func TestWalkStrings_ReplacesNestedValues(t *testing.T) {
	props := map[string]any{
		"plain": "value",
		"list":  []any{"a", "b"},
		"nested": map[string]any{
			"inner": "c",
			"count": 3,
		},
	}

	out := WalkStrings(props, func(s string) any {
		return s + "!"
	}).(map[string]any)

	assert.Equal(t, "value!", out["plain"])
	assert.Equal(t, []any{"a!", "b!"}, out["list"])
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "c!", nested["inner"])
	assert.Equal(t, 3, nested["count"])
}

func TestWalkStrings_DoesNotMutateInput(t *testing.T) {
	props := map[string]any{"key": "original"}
	WalkStrings(props, func(s string) any { return "changed" })
	assert.Equal(t, "original", props["key"])
}

func TestCollectRefs(t *testing.T) {
	props := map[string]any{
		"vpcId": "ref://aws_vpc/main/id",
		"tags":  map[string]any{"Name": "web"},
		"securityGroupIds": []any{
			"ref://aws_security_group/web/id",
			"sg-literal",
		},
		"count": 2,
	}

	refs := CollectRefs(props)
	require.Len(t, refs, 2)

	addrs := []string{refs[0].Addr(), refs[1].Addr()}
	assert.ElementsMatch(t, []string{"aws_vpc.main", "aws_security_group.web"}, addrs)
}

func TestStateLookupAndRemove(t *testing.T) {
	s := NewState()
	s.Resources = []*ResourceState{
		{Type: "aws_vpc", Name: "main", Provider: "aws"},
		{Type: "aws_subnet", Name: "web", Provider: "aws"},
	}

	require.NotNil(t, s.Lookup("aws_vpc.main"))
	assert.Nil(t, s.Lookup("aws_vpc.other"))

	s.Remove("aws_vpc.main")
	assert.Nil(t, s.Lookup("aws_vpc.main"))
	assert.Len(t, s.Resources, 1)
}
