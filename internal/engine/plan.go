package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/weft-io/weft/internal/ir"
	"github.com/weft-io/weft/internal/logging"
	"github.com/weft-io/weft/internal/provider"
	"github.com/weft-io/weft/internal/schema"
)

// Engine orchestrates the lifecycle of resources.
type Engine struct {
	registry *provider.Registry
	schemas  *schema.Registry

	// Parallelism bounds how many provider calls run at once during
	// apply. Zero means the default.
	Parallelism int
}

func NewEngine(registry *provider.Registry, schemas *schema.Registry) *Engine {
	return &Engine{
		registry: registry,
		schemas:  schemas,
	}
}

// CreatePlan generates an execution plan by comparing the desired
// configuration with the current state. It never mutates either.
func (e *Engine) CreatePlan(ctx context.Context, cfg *ir.Config, state *ir.State) (*ir.Plan, error) {
	return e.CreatePlanWithTargets(ctx, cfg, state, nil)
}

// CreatePlanWithTargets generates a plan filtered to specific resource
// addresses plus their transitive dependencies. A nil or empty targets
// list plans everything.
func (e *Engine) CreatePlanWithTargets(ctx context.Context, cfg *ir.Config, state *ir.State, targets []string) (*ir.Plan, error) {
	logging.Debug("creating plan", "resources", len(cfg.Resources), "state_resources", len(state.Resources), "targets", len(targets))
	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Changes: []*ir.ResourceChange{},
		Summary: &ir.PlanSummary{},
		Outputs: cfg.Outputs,
	}

	if err := e.ConfigureProviders(ctx, cfg); err != nil {
		return nil, err
	}

	dag, err := BuildDAG(cfg.Resources)
	if err != nil {
		return nil, err
	}

	stateMap := make(map[string]*ir.ResourceState)
	for _, res := range state.Resources {
		stateMap[res.Addr()] = res
	}

	configByAddr := make(map[string]*ir.Resource)
	for _, res := range cfg.Resources {
		configByAddr[res.Addr()] = res
	}

	var targetSet map[string]bool
	if len(targets) > 0 {
		targetSet = make(map[string]bool)
		for _, t := range targets {
			targetSet[t] = true
			for _, dep := range dag.TransitiveDeps(t) {
				targetSet[dep] = true
			}
		}
	}

	// Creates and updates walk the graph in creation order, so the
	// resulting change list is already topologically sorted.
	for _, addr := range dag.CreationOrder() {
		res := configByAddr[addr]
		if res == nil {
			continue
		}
		if targetSet != nil && !targetSet[addr] {
			plan.Summary.NoOp++
			continue
		}

		change, err := e.planResource(ctx, res, stateMap[addr], state)
		if err != nil {
			return nil, err
		}
		if change == nil {
			plan.Summary.NoOp++
			continue
		}
		plan.Changes = append(plan.Changes, change)
		plan.Summary.Count(change.Action)
	}

	// Resources present in state but absent from the configuration are
	// deleted, in reverse dependency order.
	var orphans []*ir.ResourceState
	for _, res := range state.Resources {
		if _, desired := configByAddr[res.Addr()]; !desired {
			orphans = append(orphans, res)
		}
	}
	if len(orphans) > 0 {
		stateDAG, err := BuildDAGFromState(orphans)
		if err != nil {
			return nil, err
		}
		orphanByAddr := make(map[string]*ir.ResourceState, len(orphans))
		for _, res := range orphans {
			orphanByAddr[res.Addr()] = res
		}
		for _, addr := range stateDAG.DestructionOrder() {
			res := orphanByAddr[addr]
			if targetSet != nil && !targetSet[addr] {
				continue
			}
			plan.Changes = append(plan.Changes, deleteChange(res))
			plan.Summary.Delete++
		}
	}

	return plan, nil
}

// ConfigureProviders loads every provider the configuration names and
// delivers each its settings block. A provider diagnostic with error
// severity aborts the run before any resource operation.
func (e *Engine) ConfigureProviders(ctx context.Context, cfg *ir.Config) error {
	names := make(map[string]bool)
	for _, res := range cfg.Resources {
		if res.Provider != "" {
			names[res.Provider] = true
		}
	}
	for name := range cfg.Providers {
		names[name] = true
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		if err := e.registry.LoadProvider(name); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", name, err)
		}
		prov, err := e.registry.Get(name)
		if err != nil {
			return err
		}

		var cfgJSON []byte
		if settings := cfg.Providers[name]; len(settings) > 0 {
			cfgJSON, err = json.Marshal(settings)
			if err != nil {
				return fmt.Errorf("failed to marshal settings for provider %s: %w", name, err)
			}
		}
		resp, err := prov.Configure(ctx, &provider.ConfigureRequest{ConfigJSON: cfgJSON})
		if err != nil {
			return fmt.Errorf("failed to configure provider %s: %w", name, err)
		}
		for _, diag := range resp.Diagnostics {
			if diag.Severity == provider.SeverityError {
				return fmt.Errorf("provider %s rejected its configuration: %s", name, diag.Summary)
			}
			logging.Warn("provider configuration warning", "provider", name, "summary", diag.Summary)
		}
	}
	return nil
}

// CreateDestroyPlan plans the teardown of everything in state, in
// reverse dependency order. When the desired configuration is
// available its lifecycle rules still apply: a protected resource
// fails the plan instead of being torn down.
func (e *Engine) CreateDestroyPlan(ctx context.Context, cfg *ir.Config, state *ir.State) (*ir.Plan, error) {
	plan := &ir.Plan{
		Metadata: &ir.PlanMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Changes: []*ir.ResourceChange{},
		Summary: &ir.PlanSummary{},
	}

	if cfg != nil {
		for _, res := range cfg.Resources {
			if state.Lookup(res.Addr()) == nil {
				continue
			}
			if err := enforceLifecycle(res, ir.ActionDelete); err != nil {
				return nil, err
			}
		}
	}

	for _, res := range state.Resources {
		if err := e.registry.LoadProvider(res.Provider); err != nil {
			return nil, fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
		}
	}

	dag, err := BuildDAGFromState(state.Resources)
	if err != nil {
		return nil, err
	}

	for _, addr := range dag.DestructionOrder() {
		res := state.Lookup(addr)
		if res == nil {
			continue
		}
		plan.Changes = append(plan.Changes, deleteChange(res))
		plan.Summary.Delete++
	}

	return plan, nil
}

// planResource decides the action for a single desired resource. A nil
// change means no-op.
func (e *Engine) planResource(ctx context.Context, res *ir.Resource, prior *ir.ResourceState, state *ir.State) (*ir.ResourceChange, error) {
	addr := res.Addr()

	rt, err := e.schemas.Get(res.Type)
	if err != nil {
		return nil, err
	}

	prov, err := e.registry.Get(res.Provider)
	if err != nil {
		return nil, err
	}

	// Recorded outputs hold resolved values, so the desired side must be
	// resolved too before the provider diffs them. References whose
	// target is not in state yet stay as-is; that target is being
	// created in the same run and this resource has no prior to diff
	// against.
	desiredJSON, err := json.Marshal(resolveSatisfiedRefs(res.Properties, state))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal properties for %s: %w", addr, err)
	}

	var priorJSON []byte
	if prior != nil {
		priorJSON, _ = json.Marshal(prior.Outputs)
	}

	resp, err := prov.Plan(ctx, &provider.PlanRequest{
		Type:              res.Type,
		Name:              res.Name,
		DesiredConfigJSON: desiredJSON,
		PriorStateJSON:    priorJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("plan failed for %s: %w", addr, err)
	}

	action := fromProviderAction(resp.Action)
	changed := resp.ChangedAttributes

	// Providers only see opaque JSON; immutability is a schema concern
	// decided here.
	var replaceReasons []string
	if action == ir.ActionUpdate {
		for _, attrName := range changed {
			if attr, ok := rt.Attributes[attrName]; ok && attr.Immutable {
				replaceReasons = append(replaceReasons, attrName)
			}
		}
		if len(replaceReasons) > 0 {
			action = ir.ActionReplace
		}
	}

	if action == ir.ActionUpdate && res.Lifecycle != nil && len(res.Lifecycle.IgnoreChanges) > 0 {
		if allIgnored(changed, res.Lifecycle.IgnoreChanges) {
			action = ir.ActionNoOp
		}
	}

	if action == ir.ActionNoOp {
		return nil, nil
	}

	if err := enforceLifecycle(res, action); err != nil {
		return nil, err
	}

	change := &ir.ResourceChange{
		Address:        addr,
		Action:         action,
		Desired:        res,
		ReplaceReasons: replaceReasons,
	}

	if prior != nil {
		change.Prior = &ir.Resource{
			Type:       prior.Type,
			Name:       prior.Name,
			Provider:   prior.Provider,
			Properties: prior.Inputs,
		}
		change.Diff = buildPropertyDiff(rt, prior.Inputs, res.Properties)
	} else {
		change.Diff = buildCreateDiff(rt, res.Properties)
	}

	return change, nil
}

// resolveSatisfiedRefs substitutes every ref:// value whose target
// already has a state record, leaving the rest untouched.
func resolveSatisfiedRefs(props map[string]any, state *ir.State) map[string]any {
	out := ir.WalkStrings(props, func(s string) any {
		ref, ok := ir.ParseRef(s)
		if !ok {
			return s
		}
		rec := state.Lookup(ref.Addr())
		if rec == nil {
			return s
		}
		if v, ok := rec.Outputs[ref.Attribute]; ok {
			return v
		}
		if v, ok := rec.Inputs[ref.Attribute]; ok {
			return v
		}
		return s
	})
	return out.(map[string]any)
}

func deleteChange(res *ir.ResourceState) *ir.ResourceChange {
	return &ir.ResourceChange{
		Address: res.Addr(),
		Action:  ir.ActionDelete,
		Prior: &ir.Resource{
			Type:       res.Type,
			Name:       res.Name,
			Provider:   res.Provider,
			Properties: res.Inputs,
		},
		Diff: buildDeleteDiff(res.Inputs),
	}
}

// enforceLifecycle rejects plans that would destroy a protected
// resource.
func enforceLifecycle(res *ir.Resource, action ir.Action) error {
	if res.Lifecycle == nil {
		return nil
	}
	if res.Lifecycle.PreventDestroy && (action == ir.ActionDelete || action == ir.ActionReplace) {
		return fmt.Errorf("resource %s has preventDestroy set but plan requires destruction", res.Addr())
	}
	return nil
}

// allIgnored reports whether every changed attribute appears in the
// resource's ignoreChanges list.
func allIgnored(changed, ignored []string) bool {
	if len(changed) == 0 {
		return false
	}
	ignoreSet := make(map[string]bool, len(ignored))
	for _, attr := range ignored {
		ignoreSet[attr] = true
	}
	for _, attr := range changed {
		if !ignoreSet[attr] {
			return false
		}
	}
	return true
}

func fromProviderAction(a provider.Action) ir.Action {
	switch a {
	case provider.ActionCreate:
		return ir.ActionCreate
	case provider.ActionUpdate:
		return ir.ActionUpdate
	case provider.ActionDelete:
		return ir.ActionDelete
	case provider.ActionReplace:
		return ir.ActionReplace
	default:
		return ir.ActionNoOp
	}
}

// buildPropertyDiff compares prior and desired properties.
func buildPropertyDiff(rt *schema.ResourceType, prior, desired map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)

	allKeys := make(map[string]bool)
	for k := range prior {
		allKeys[k] = true
	}
	for k := range desired {
		allKeys[k] = true
	}

	for k := range allKeys {
		priorVal, inPrior := prior[k]
		desiredVal, inDesired := desired[k]

		var d *ir.PropertyDiff
		switch {
		case !inPrior:
			d = &ir.PropertyDiff{After: desiredVal, Action: "create"}
		case !inDesired:
			d = &ir.PropertyDiff{Before: priorVal, Action: "delete"}
		case fmt.Sprintf("%v", priorVal) != fmt.Sprintf("%v", desiredVal):
			d = &ir.PropertyDiff{Before: priorVal, After: desiredVal, Action: "update"}
		default:
			continue
		}
		annotate(rt, k, d)
		diff[k] = d
	}

	return diff
}

func buildCreateDiff(rt *schema.ResourceType, props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for k, v := range props {
		d := &ir.PropertyDiff{After: v, Action: "create"}
		annotate(rt, k, d)
		diff[k] = d
	}
	return diff
}

func buildDeleteDiff(props map[string]any) map[string]*ir.PropertyDiff {
	diff := make(map[string]*ir.PropertyDiff)
	for k, v := range props {
		diff[k] = &ir.PropertyDiff{Before: v, Action: "delete"}
	}
	return diff
}

func annotate(rt *schema.ResourceType, name string, d *ir.PropertyDiff) {
	attr, ok := rt.Attributes[name]
	if !ok {
		return
	}
	d.Sensitive = attr.Sensitive
	d.ForcesReplacement = attr.Immutable && d.Action == "update"
}
