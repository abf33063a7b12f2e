package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/weft-io/weft/internal/ir"
	"github.com/weft-io/weft/internal/logging"
	"github.com/weft-io/weft/internal/provider"
)

const defaultParallelism = 10

// Apply event statuses.
const (
	StatusStarted   = "started"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	// StatusSkipped marks a resource that was not attempted because
	// something it depends on failed.
	StatusSkipped = "skipped"
)

// ApplyEvent represents a progress event during apply.
type ApplyEvent struct {
	Address  string
	Action   ir.Action
	Status   string
	Duration time.Duration
	Error    error
}

// ApplyCallback is called for each apply event if set.
type ApplyCallback func(event ApplyEvent)

// ApplyOptions tunes a single apply run.
type ApplyOptions struct {
	Callback ApplyCallback
	// Persist, when set, is called with the updated state after every
	// successful resource operation, so a crash loses at most the
	// in-flight resource.
	Persist func(*ir.State) error
}

// ApplyPlan executes a plan and updates the state. Independent
// resources run in parallel; resources depending on a failed one are
// skipped. The returned state reflects exactly the operations that
// completed, and the error aggregates every failure.
func (e *Engine) ApplyPlan(ctx context.Context, plan *ir.Plan, state *ir.State) (*ir.State, error) {
	return e.ApplyPlanWithOptions(ctx, plan, state, ApplyOptions{})
}

// ApplyPlanWithOptions executes a plan with progress callbacks and
// per-resource persistence.
func (e *Engine) ApplyPlanWithOptions(ctx context.Context, plan *ir.Plan, state *ir.State, opts ApplyOptions) (*ir.State, error) {
	run := &applyRun{
		engine: e,
		state:  state,
		opts:   opts,
	}
	run.stateIndex = make(map[string]int)
	for i, res := range state.Resources {
		run.stateIndex[res.Addr()] = i
	}

	// Deletes run after creates and updates, in their own pass, so a
	// replacement's new dependency exists before the old one goes away.
	var creates, deletes []*ir.ResourceChange
	for _, change := range plan.Changes {
		if change.Action == ir.ActionDelete {
			deletes = append(deletes, change)
		} else {
			creates = append(creates, change)
		}
	}

	var errs []error
	if err := run.applyGroup(ctx, creates, createDeps(creates)); err != nil {
		errs = append(errs, err)
	}
	if ctx.Err() == nil {
		if err := run.applyGroup(ctx, deletes, deleteDeps(deletes, state)); err != nil {
			errs = append(errs, err)
		}
	}

	state.Serial++
	if len(plan.Outputs) > 0 {
		resolved, err := resolveReferences(plan.Outputs, state)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to resolve outputs: %w", err))
		} else {
			state.Outputs = resolved
		}
	} else {
		state.Outputs = nil
	}
	if opts.Persist != nil {
		if err := opts.Persist(state); err != nil {
			errs = append(errs, fmt.Errorf("failed to persist state: %w", err))
		}
	}

	if len(errs) > 0 {
		return state, errors.Join(errs...)
	}
	return state, nil
}

// applyRun carries the shared mutable pieces of one apply.
type applyRun struct {
	engine     *Engine
	state      *ir.State
	stateIndex map[string]int
	mu         sync.Mutex
	opts       ApplyOptions
}

func (r *applyRun) emit(event ApplyEvent) {
	if r.opts.Callback != nil {
		r.opts.Callback(event)
	}
}

// createDeps maps each change to the other changes in the same group
// it must wait for, derived from explicit dependsOn and embedded
// references.
func createDeps(changes []*ir.ResourceChange) map[string]map[string]bool {
	inGroup := make(map[string]bool, len(changes))
	for _, c := range changes {
		inGroup[c.Address] = true
	}

	deps := make(map[string]map[string]bool, len(changes))
	for _, c := range changes {
		deps[c.Address] = make(map[string]bool)
		if c.Desired == nil {
			continue
		}
		for _, d := range c.Desired.DependsOn {
			if inGroup[d] {
				deps[c.Address][d] = true
			}
		}
		for _, ref := range ir.CollectRefs(c.Desired.Properties) {
			if inGroup[ref.Addr()] && ref.Addr() != c.Address {
				deps[c.Address][ref.Addr()] = true
			}
		}
	}
	return deps
}

// deleteDeps inverts the recorded dependency edges: a resource can
// only be deleted after everything that depends on it is gone.
func deleteDeps(changes []*ir.ResourceChange, state *ir.State) map[string]map[string]bool {
	inGroup := make(map[string]bool, len(changes))
	for _, c := range changes {
		inGroup[c.Address] = true
	}

	deps := make(map[string]map[string]bool, len(changes))
	for _, c := range changes {
		deps[c.Address] = make(map[string]bool)
	}
	for _, c := range changes {
		rec := state.Lookup(c.Address)
		if rec == nil {
			continue
		}
		for _, d := range rec.Dependencies {
			if inGroup[d] {
				deps[d][c.Address] = true
			}
		}
	}
	return deps
}

// applyGroup runs one group of changes concurrently, gating each
// change on its in-group dependencies. Failures never stop unrelated
// branches; dependents of a failed change are skipped.
func (r *applyRun) applyGroup(ctx context.Context, changes []*ir.ResourceChange, deps map[string]map[string]bool) error {
	if len(changes) == 0 {
		return nil
	}

	parallelism := r.engine.Parallelism
	if parallelism <= 0 {
		parallelism = defaultParallelism
	}

	var (
		gateMu sync.Mutex
		gate   = sync.NewCond(&gateMu)

		completed = make(map[string]bool)
		failed    = make(map[string]bool)
		errs      []error
	)
	sem := make(chan struct{}, parallelism)

	var wg sync.WaitGroup
	for _, change := range changes {
		wg.Add(1)
		go func(c *ir.ResourceChange) {
			defer wg.Done()

			gateMu.Lock()
			for {
				if ctx.Err() != nil {
					gateMu.Unlock()
					return
				}
				ready := true
				for dep := range deps[c.Address] {
					if failed[dep] {
						failed[c.Address] = true
						gateMu.Unlock()
						gate.Broadcast()
						r.emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: StatusSkipped})
						return
					}
					if !completed[dep] {
						ready = false
					}
				}
				if ready {
					break
				}
				gate.Wait()
			}
			gateMu.Unlock()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				return
			}

			start := time.Now()
			r.emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: StatusStarted})

			err := r.applyChange(ctx, c)

			gateMu.Lock()
			if err != nil {
				failed[c.Address] = true
				errs = append(errs, err)
			} else {
				completed[c.Address] = true
			}
			gateMu.Unlock()
			gate.Broadcast()

			if err != nil {
				r.emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: StatusFailed, Duration: time.Since(start), Error: err})
			} else {
				r.emit(ApplyEvent{Address: c.Address, Action: c.Action, Status: StatusCompleted, Duration: time.Since(start)})
			}
		}(change)
	}

	// Wake any waiters when the context is cancelled so the run winds
	// down instead of hanging. The broadcast happens while holding
	// gateMu: a waiter between its ctx check and gate.Wait still holds
	// the mutex, so the wakeup cannot slip past it.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			gateMu.Lock()
			gate.Broadcast()
			gateMu.Unlock()
		case <-done:
		}
	}()
	wg.Wait()
	close(done)

	if err := ctx.Err(); err != nil {
		errs = append(errs, fmt.Errorf("apply cancelled: %w", err))
	}
	return errors.Join(errs...)
}

// applyChange runs the provider operation for one change and records
// the outcome in state.
func (r *applyRun) applyChange(ctx context.Context, change *ir.ResourceChange) error {
	addr := change.Address
	logging.Debug("applying change", "address", addr, "action", change.Action)

	timeout := DefaultTimeout
	if change.Desired != nil && change.Desired.Timeout != "" {
		if d, err := time.ParseDuration(change.Desired.Timeout); err == nil && d > 0 {
			timeout = d
		}
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	provName := change.Provider()
	prov, err := r.engine.registry.Get(provName)
	if err != nil {
		return &ActionError{Address: addr, Action: string(change.Action), Err: err}
	}

	switch change.Action {
	case ir.ActionCreate, ir.ActionUpdate:
		return r.createOrUpdate(ctx, prov, change)
	case ir.ActionReplace:
		cbd := change.Desired != nil && change.Desired.Lifecycle != nil && change.Desired.Lifecycle.CreateBeforeDestroy
		if cbd {
			// Capture the old object before the new record overwrites
			// it, then destroy it once the replacement exists.
			var priorJSON []byte
			r.mu.Lock()
			if idx, ok := r.stateIndex[addr]; ok && r.state.Resources[idx].Outputs != nil {
				priorJSON, _ = json.Marshal(r.state.Resources[idx].Outputs)
			}
			r.mu.Unlock()
			if err := r.createOrUpdate(ctx, prov, change); err != nil {
				return err
			}
			if priorJSON != nil {
				_, delErr := prov.Delete(ctx, &provider.DeleteRequest{
					Type:             change.Desired.Type,
					Name:             change.Desired.Name,
					CurrentStateJSON: priorJSON,
				})
				if delErr != nil {
					return &ActionError{Address: addr, Action: string(ir.ActionDelete), Err: delErr}
				}
			}
			return nil
		}
		if err := r.delete(ctx, prov, change); err != nil {
			return err
		}
		return r.createOrUpdate(ctx, prov, change)
	case ir.ActionDelete:
		return r.delete(ctx, prov, change)
	default:
		return nil
	}
}

func (r *applyRun) createOrUpdate(ctx context.Context, prov provider.Provider, change *ir.ResourceChange) error {
	res := change.Desired
	addr := change.Address

	r.mu.Lock()
	resolved, err := resolveReferences(res.Properties, r.state)
	var priorJSON []byte
	if idx, ok := r.stateIndex[addr]; ok && r.state.Resources[idx].Outputs != nil {
		priorJSON, _ = json.Marshal(r.state.Resources[idx].Outputs)
	}
	r.mu.Unlock()
	if err != nil {
		return &ActionError{Address: addr, Action: string(change.Action), Err: err}
	}

	desiredJSON, err := json.Marshal(resolved)
	if err != nil {
		return &ActionError{Address: addr, Action: string(change.Action), Err: err}
	}

	var resp *provider.ApplyResponse
	err = RetryWithBackoff(ctx, DefaultRetryPolicy(), func() error {
		var applyErr error
		resp, applyErr = prov.Apply(ctx, &provider.ApplyRequest{
			Type:              res.Type,
			Name:              res.Name,
			Action:            toProviderAction(change.Action),
			DesiredConfigJSON: desiredJSON,
			PriorStateJSON:    priorJSON,
		})
		return applyErr
	}, IsTransientError)
	if err != nil {
		return &ActionError{Address: addr, Action: string(change.Action), Err: err}
	}

	var outputs map[string]any
	if len(resp.NewStateJSON) > 0 {
		if err := json.Unmarshal(resp.NewStateJSON, &outputs); err != nil {
			return &ActionError{Address: addr, Action: string(change.Action), Err: fmt.Errorf("failed to unmarshal new state: %w", err)}
		}
	}

	record := &ir.ResourceState{
		Type:         res.Type,
		Name:         res.Name,
		Provider:     res.Provider,
		Inputs:       res.Properties,
		Outputs:      outputs,
		Dependencies: dependencyAddrs(res),
	}

	r.mu.Lock()
	if idx, ok := r.stateIndex[addr]; ok {
		r.state.Resources[idx] = record
	} else {
		r.stateIndex[addr] = len(r.state.Resources)
		r.state.Resources = append(r.state.Resources, record)
	}
	err = r.persistLocked()
	r.mu.Unlock()
	return err
}

func (r *applyRun) delete(ctx context.Context, prov provider.Provider, change *ir.ResourceChange) error {
	addr := change.Address

	var typ, name string
	if change.Prior != nil {
		typ, name = change.Prior.Type, change.Prior.Name
	} else if change.Desired != nil {
		typ, name = change.Desired.Type, change.Desired.Name
	}

	var currentJSON []byte
	r.mu.Lock()
	if idx, ok := r.stateIndex[addr]; ok && r.state.Resources[idx].Outputs != nil {
		currentJSON, _ = json.Marshal(r.state.Resources[idx].Outputs)
	}
	r.mu.Unlock()

	err := RetryWithBackoff(ctx, DefaultRetryPolicy(), func() error {
		_, deleteErr := prov.Delete(ctx, &provider.DeleteRequest{
			Type:             typ,
			Name:             name,
			CurrentStateJSON: currentJSON,
		})
		return deleteErr
	}, IsTransientError)
	if err != nil {
		return &ActionError{Address: addr, Action: string(ir.ActionDelete), Err: err}
	}

	r.mu.Lock()
	if _, ok := r.stateIndex[addr]; ok {
		r.state.Remove(addr)
		r.stateIndex = make(map[string]int, len(r.state.Resources))
		for i, res := range r.state.Resources {
			r.stateIndex[res.Addr()] = i
		}
	}
	err = r.persistLocked()
	r.mu.Unlock()
	return err
}

// persistLocked writes state through the configured persister. Callers
// hold r.mu.
func (r *applyRun) persistLocked() error {
	if r.opts.Persist == nil {
		return nil
	}
	if err := r.opts.Persist(r.state); err != nil {
		return fmt.Errorf("failed to persist state: %w", err)
	}
	return nil
}

func toProviderAction(a ir.Action) provider.Action {
	switch a {
	case ir.ActionCreate, ir.ActionReplace:
		return provider.ActionCreate
	case ir.ActionUpdate:
		return provider.ActionUpdate
	case ir.ActionDelete:
		return provider.ActionDelete
	default:
		return provider.ActionNoop
	}
}

// dependencyAddrs records the addresses a resource depends on, for
// destroy-time ordering.
func dependencyAddrs(res *ir.Resource) []string {
	seen := make(map[string]bool)
	var addrs []string
	for _, d := range res.DependsOn {
		if !seen[d] {
			seen[d] = true
			addrs = append(addrs, d)
		}
	}
	for _, ref := range ir.CollectRefs(res.Properties) {
		if a := ref.Addr(); a != res.Addr() && !seen[a] {
			seen[a] = true
			addrs = append(addrs, a)
		}
	}
	return addrs
}

// resolveReferences substitutes every ref:// value with the referenced
// resource's real attribute from state. By the ordering guarantee the
// referenced record exists before any dependent change runs.
func resolveReferences(props map[string]any, state *ir.State) (map[string]any, error) {
	var unresolved error
	out := ir.WalkStrings(props, func(s string) any {
		ref, ok := ir.ParseRef(s)
		if !ok {
			return s
		}
		rec := state.Lookup(ref.Addr())
		if rec == nil {
			if unresolved == nil {
				unresolved = fmt.Errorf("reference %s is not satisfied by state", s)
			}
			return s
		}
		if v, ok := rec.Outputs[ref.Attribute]; ok {
			return v
		}
		if v, ok := rec.Inputs[ref.Attribute]; ok {
			return v
		}
		if unresolved == nil {
			unresolved = fmt.Errorf("resource %s has no attribute %q", ref.Addr(), ref.Attribute)
		}
		return s
	})
	if unresolved != nil {
		return nil, unresolved
	}
	return out.(map[string]any), nil
}
