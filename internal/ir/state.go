package ir

import "fmt"

// State represents the persisted record of managed infrastructure.
// The executor is its only writer during a run.
type State struct {
	Version   int              `json:"version"`
	Serial    int              `json:"serial"`
	Lineage   string           `json:"lineage"`
	Resources []*ResourceState `json:"resources"`
	Outputs   map[string]any   `json:"outputs,omitempty"`
}

// ResourceState pairs a logical address with the provider-assigned
// identity and attribute snapshot from the last successful apply.
type ResourceState struct {
	Type         string         `json:"type"`
	Name         string         `json:"name"`
	Provider     string         `json:"provider"`
	Inputs       map[string]any `json:"inputs"`  // user provided
	Outputs      map[string]any `json:"outputs"` // provider returned
	Dependencies []string       `json:"dependencies,omitempty"`
}

// Addr returns the logical address of the state record (type.name).
func (r *ResourceState) Addr() string {
	return fmt.Sprintf("%s.%s", r.Type, r.Name)
}

// NewState returns an empty state at serial zero.
func NewState() *State {
	return &State{Version: 1, Serial: 0}
}

// Lookup returns the resource state for the given address, or nil.
func (s *State) Lookup(addr string) *ResourceState {
	for _, res := range s.Resources {
		if res.Addr() == addr {
			return res
		}
	}
	return nil
}

// Remove deletes the resource state for the given address, if present.
func (s *State) Remove(addr string) {
	for i, res := range s.Resources {
		if res.Addr() == addr {
			s.Resources = append(s.Resources[:i], s.Resources[i+1:]...)
			return
		}
	}
}
