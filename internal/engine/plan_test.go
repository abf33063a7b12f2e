package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weft-io/weft/internal/ir"
)

func thingConfig(name string, props map[string]any, opts ...func(*ir.Resource)) *ir.Resource {
	res := &ir.Resource{
		Type:       "test_thing",
		Name:       name,
		Provider:   "test",
		Properties: props,
	}
	for _, opt := range opts {
		opt(res)
	}
	return res
}

func thingState(name string, outputs map[string]any) *ir.ResourceState {
	inputs := make(map[string]any)
	for k, v := range outputs {
		if k != "id" {
			inputs[k] = v
		}
	}
	return &ir.ResourceState{
		Type:     "test_thing",
		Name:     name,
		Provider: "test",
		Inputs:   inputs,
		Outputs:  outputs,
	}
}

func mustPlan(t *testing.T, eng *Engine, cfg *ir.Config, state *ir.State) *ir.Plan {
	t.Helper()
	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	return plan
}

func TestCreatePlan_Create(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small", "color": "red"}),
		},
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, ir.NewState())
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)

	change := plan.Changes[0]
	assert.Equal(t, "test_thing.a", change.Address)
	assert.Equal(t, ir.ActionCreate, change.Action)
	assert.Equal(t, 1, plan.Summary.Create)
	require.Contains(t, change.Diff, "size")
	assert.Equal(t, "create", change.Diff["size"].Action)
}

func TestCreatePlan_NoChanges(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small"}),
		},
	}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "size": "small"}),
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
	assert.Equal(t, 1, plan.Summary.NoOp)
}

func TestCreatePlan_NoChangesWithReferences(t *testing.T) {
	eng := loadedEngine(t)
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small"}),
			thingConfig("b", map[string]any{"size": "small", "color": "ref://test_thing/a/id"}),
		},
	}

	state, err := eng.ApplyPlan(context.Background(), mustPlan(t, eng, cfg, ir.NewState()), ir.NewState())
	require.NoError(t, err)

	// Re-planning the identical configuration against the resulting
	// state must change nothing, even though the recorded outputs hold
	// the resolved reference value.
	second, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.True(t, second.Empty())
	assert.Equal(t, 2, second.Summary.NoOp)
}

func TestCreatePlan_ReferenceTouchesOnlyChangedResource(t *testing.T) {
	eng := loadedEngine(t)
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small"}),
			thingConfig("b", map[string]any{"size": "small", "color": "ref://test_thing/a/id", "secret": "one"}),
		},
	}

	state, err := eng.ApplyPlan(context.Background(), mustPlan(t, eng, cfg, ir.NewState()), ir.NewState())
	require.NoError(t, err)

	// Changing one resource's mutable attribute plans exactly that
	// resource, not its neighbors in the reference graph.
	cfg.Resources[1] = thingConfig("b", map[string]any{
		"size": "small", "color": "ref://test_thing/a/id", "secret": "two",
	})
	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "test_thing.b", plan.Changes[0].Address)
	assert.Equal(t, ir.ActionUpdate, plan.Changes[0].Action)
	assert.Equal(t, 1, plan.Summary.NoOp)
}

func TestCreatePlan_Update(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small", "color": "blue"}),
		},
	}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "size": "small", "color": "red"}),
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)

	change := plan.Changes[0]
	assert.Equal(t, ir.ActionUpdate, change.Action)
	assert.Empty(t, change.ReplaceReasons)
	require.Contains(t, change.Diff, "color")
	assert.Equal(t, "update", change.Diff["color"].Action)
	assert.Equal(t, "red", change.Diff["color"].Before)
	assert.Equal(t, "blue", change.Diff["color"].After)
}

func TestCreatePlan_ReplaceOnImmutableChange(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "large", "color": "red"}),
		},
	}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "size": "small", "color": "red"}),
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)

	change := plan.Changes[0]
	assert.Equal(t, ir.ActionReplace, change.Action)
	assert.Equal(t, []string{"size"}, change.ReplaceReasons)
	require.Contains(t, change.Diff, "size")
	assert.True(t, change.Diff["size"].ForcesReplacement)
	assert.Equal(t, 1, plan.Summary.Replace)
}

func TestCreatePlan_SensitiveDiff(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"secret": "hunter2"}),
		},
	}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "secret": "hunter1"}),
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	require.Contains(t, plan.Changes[0].Diff, "secret")
	assert.True(t, plan.Changes[0].Diff["secret"].Sensitive)
}

func TestCreatePlan_IgnoreChanges(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"color": "blue"}, func(r *ir.Resource) {
				r.Lifecycle = &ir.Lifecycle{IgnoreChanges: []string{"color"}}
			}),
		},
	}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "color": "red"}),
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.True(t, plan.Empty())
}

func TestCreatePlan_PreventDestroy(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "large"}, func(r *ir.Resource) {
				r.Lifecycle = &ir.Lifecycle{PreventDestroy: true}
			}),
		},
	}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "size": "small"}),
	}

	_, err := eng.CreatePlan(context.Background(), cfg, state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preventDestroy")
}

func TestCreatePlan_OrphanDelete(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("gone", map[string]any{"id": "test-gone", "size": "small"}),
	}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, ir.ActionDelete, plan.Changes[0].Action)
	assert.Equal(t, "test_thing.gone", plan.Changes[0].Address)
	assert.Equal(t, 1, plan.Summary.Delete)
}

func TestCreatePlan_OrphanDeleteOrder(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{}
	state := ir.NewState()
	parent := thingState("parent", map[string]any{"id": "test-parent"})
	child := thingState("child", map[string]any{"id": "test-child"})
	child.Dependencies = []string{"test_thing.parent"}
	state.Resources = []*ir.ResourceState{parent, child}

	plan, err := eng.CreatePlan(context.Background(), cfg, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 2)

	// The dependent record goes first on the way down.
	assert.Equal(t, "test_thing.child", plan.Changes[0].Address)
	assert.Equal(t, "test_thing.parent", plan.Changes[1].Address)
}

func TestCreatePlan_Targets(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("base", map[string]any{"size": "small"}),
			thingConfig("mid", map[string]any{"size": "small"}, func(r *ir.Resource) {
				r.DependsOn = []string{"test_thing.base"}
			}),
			thingConfig("other", map[string]any{"size": "small"}),
		},
	}

	plan, err := eng.CreatePlanWithTargets(context.Background(), cfg, ir.NewState(), []string{"test_thing.mid"})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 2)

	addrs := []string{plan.Changes[0].Address, plan.Changes[1].Address}
	assert.ElementsMatch(t, []string{"test_thing.base", "test_thing.mid"}, addrs)
	assert.Equal(t, 1, plan.Summary.NoOp)
}

func TestCreateDestroyPlan(t *testing.T) {
	eng := testEngine()
	state := ir.NewState()
	parent := thingState("parent", map[string]any{"id": "test-parent"})
	child := thingState("child", map[string]any{"id": "test-child"})
	child.Dependencies = []string{"test_thing.parent"}
	state.Resources = []*ir.ResourceState{parent, child}

	plan, err := eng.CreateDestroyPlan(context.Background(), nil, state)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 2)

	assert.Equal(t, ir.ActionDelete, plan.Changes[0].Action)
	assert.Equal(t, ir.ActionDelete, plan.Changes[1].Action)
	assert.Equal(t, "test_thing.child", plan.Changes[0].Address)
	assert.Equal(t, "test_thing.parent", plan.Changes[1].Address)
	assert.Equal(t, 2, plan.Summary.Delete)
}

func TestCreateDestroyPlan_PreventDestroy(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small"}, func(r *ir.Resource) {
				r.Lifecycle = &ir.Lifecycle{PreventDestroy: true}
			}),
		},
	}
	state := ir.NewState()
	state.Resources = []*ir.ResourceState{
		thingState("a", map[string]any{"id": "test-a", "size": "small"}),
	}

	_, err := eng.CreateDestroyPlan(context.Background(), cfg, state)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "preventDestroy")

	// A protected resource with no state record does not block the
	// teardown of everything else.
	state.Resources = nil
	plan, err := eng.CreateDestroyPlan(context.Background(), cfg, state)
	require.NoError(t, err)
	assert.Empty(t, plan.Changes)
}

func TestConfigureProviders_DeliversSettings(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Providers: map[string]map[string]any{
			"test": {"endpoint": "https://fake.local", "region": "eu-west-1"},
		},
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small"}),
		},
	}

	require.NoError(t, eng.ConfigureProviders(context.Background(), cfg))

	prov, err := eng.registry.Get("test")
	require.NoError(t, err)
	fake := prov.(*fakeProvider)
	assert.Equal(t, "https://fake.local", fake.lastConfig["endpoint"])
	assert.Equal(t, "eu-west-1", fake.lastConfig["region"])
}

func TestConfigureProviders_ErrorDiagnostic(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Providers: map[string]map[string]any{"test": {"reject": true}},
	}

	err := eng.ConfigureProviders(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected its configuration")
}

func TestCreatePlan_ConfiguresProviders(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Providers: map[string]map[string]any{"test": {"endpoint": "https://fake.local"}},
		Resources: []*ir.Resource{
			thingConfig("a", map[string]any{"size": "small"}),
		},
	}

	_, err := eng.CreatePlan(context.Background(), cfg, ir.NewState())
	require.NoError(t, err)

	prov, err := eng.registry.Get("test")
	require.NoError(t, err)
	assert.Equal(t, "https://fake.local", prov.(*fakeProvider).lastConfig["endpoint"])
}

func TestCreatePlan_UnknownProvider(t *testing.T) {
	eng := testEngine()
	cfg := &ir.Config{
		Resources: []*ir.Resource{
			{Type: "test_thing", Name: "a", Provider: "martian"},
		},
	}

	_, err := eng.CreatePlan(context.Background(), cfg, ir.NewState())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
