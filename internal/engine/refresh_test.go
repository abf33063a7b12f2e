package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/ir"
)

func TestRefresh_DropsVanishedResources(t *testing.T) {
	eng := testEngine()
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("alive", map[string]any{"id": "test-alive"}),
		thingState("gone", map[string]any{"id": "test-gone", "vanished": true}),
	}

	require.NoError(t, eng.Refresh(context.Background(), state))

	require.Len(t, state.Resources, 1)
	assert.Equal(t, "test_thing.alive", state.Resources[0].Addr())
	assert.Equal(t, 1, state.Serial)
}

func TestRefresh_KeepsHealthyResources(t *testing.T) {
	eng := testEngine()
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "size": "small"}),
	}

	require.NoError(t, eng.Refresh(context.Background(), state))

	require.Len(t, state.Resources, 1)
	assert.Equal(t, "small", state.Resources[0].Outputs["size"])
}

func TestRefresh_EmptyState(t *testing.T) {
	eng := testEngine()
	state := ir.NewState()

	require.NoError(t, eng.Refresh(context.Background(), state))
	assert.Empty(t, state.Resources)
	assert.Equal(t, 1, state.Serial)
}
