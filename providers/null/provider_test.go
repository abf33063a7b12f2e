package null

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/provider"
)

func TestPlan_CreateWhenNoPriorState(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:              "null_resource",
		Name:              "test",
		DesiredConfigJSON: []byte(`{"triggers":{"a":"b"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionCreate, resp.Action)
}

func TestPlan_NoopWhenTriggersUnchanged(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:              "null_resource",
		Name:              "test",
		DesiredConfigJSON: []byte(`{"triggers":{"a":"b"}}`),
		PriorStateJSON:    []byte(`{"id":"null-test","triggers":{"a":"b"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionNoop, resp.Action)
}

func TestPlan_ReplaceWhenTriggersChange(t *testing.T) {
	p := New()

	resp, err := p.Plan(context.Background(), &provider.PlanRequest{
		Type:              "null_resource",
		Name:              "test",
		DesiredConfigJSON: []byte(`{"triggers":{"a":"new"}}`),
		PriorStateJSON:    []byte(`{"id":"null-test","triggers":{"a":"old"}}`),
	})
	require.NoError(t, err)
	assert.Equal(t, provider.ActionReplace, resp.Action)
	assert.Equal(t, []string{"triggers"}, resp.ChangedAttributes)
}

func TestApply_ReturnsStableID(t *testing.T) {
	p := New()

	resp, err := p.Apply(context.Background(), &provider.ApplyRequest{
		Type:              "null_resource",
		Name:              "test",
		Action:            provider.ActionCreate,
		DesiredConfigJSON: []byte(`{"triggers":{"a":"b"}}`),
	})
	require.NoError(t, err)

	var state map[string]any
	require.NoError(t, json.Unmarshal(resp.NewStateJSON, &state))
	assert.Equal(t, "null-test", state["id"])
	assert.Equal(t, map[string]any{"a": "b"}, state["triggers"])
}

func TestRead_AlwaysExists(t *testing.T) {
	p := New()

	current := []byte(`{"id":"null-test"}`)
	resp, err := p.Read(context.Background(), &provider.ReadRequest{
		Type:             "null_resource",
		Name:             "test",
		CurrentStateJSON: current,
	})
	require.NoError(t, err)
	assert.True(t, resp.Exists)
	assert.Equal(t, current, resp.NewStateJSON)
}

func TestDelete_Noop(t *testing.T) {
	p := New()

	_, err := p.Delete(context.Background(), &provider.DeleteRequest{
		Type:             "null_resource",
		Name:             "test",
		CurrentStateJSON: []byte(`{"id":"null-test"}`),
	})
	assert.NoError(t, err)
}

func TestEqualTriggers(t *testing.T) {
	tests := []struct {
		name string
		a, b map[string]any
		want bool
	}{
		{"both empty", nil, nil, true},
		{"equal", map[string]any{"k": "v"}, map[string]any{"k": "v"}, true},
		{"different value", map[string]any{"k": "v"}, map[string]any{"k": "w"}, false},
		{"different size", map[string]any{"k": "v"}, map[string]any{}, false},
		{"numeric formatting", map[string]any{"n": 1}, map[string]any{"n": float64(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, equalTriggers(tt.a, tt.b))
		})
	}
}
