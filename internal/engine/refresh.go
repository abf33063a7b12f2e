package engine

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/weft-io/weft/internal/ir"
	"github.com/weft-io/weft/internal/logging"
	"github.com/weft-io/weft/internal/provider"
)

// Refresh reconciles recorded state with what actually exists at the
// provider. Records for objects that disappeared are dropped; output
// attributes are refreshed from the live object. Planning normally
// trusts the state store; Refresh is the explicit drift check.
func (e *Engine) Refresh(ctx context.Context, state *ir.State) error {
	for _, res := range state.Resources {
		if err := e.registry.LoadProvider(res.Provider); err != nil {
			return fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
		}
	}

	var kept []*ir.ResourceState
	for _, res := range state.Resources {
		prov, err := e.registry.Get(res.Provider)
		if err != nil {
			return err
		}

		currentJSON, err := json.Marshal(res.Outputs)
		if err != nil {
			return fmt.Errorf("failed to marshal state for %s: %w", res.Addr(), err)
		}

		resp, err := prov.Read(ctx, &provider.ReadRequest{
			Type:             res.Type,
			Name:             res.Name,
			CurrentStateJSON: currentJSON,
		})
		if err != nil {
			return &ActionError{Address: res.Addr(), Action: "READ", Err: err}
		}

		if !resp.Exists {
			logging.Warn("resource no longer exists, dropping from state", "address", res.Addr())
			continue
		}

		if len(resp.NewStateJSON) > 0 {
			var outputs map[string]any
			if err := json.Unmarshal(resp.NewStateJSON, &outputs); err != nil {
				return fmt.Errorf("failed to unmarshal refreshed state for %s: %w", res.Addr(), err)
			}
			res.Outputs = outputs
		}
		kept = append(kept, res)
	}

	state.Resources = kept
	state.Serial++
	return nil
}
