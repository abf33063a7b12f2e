package ir

// Action identifies what the executor will do for one resource.
type Action string

const (
	ActionCreate  Action = "CREATE"
	ActionUpdate  Action = "UPDATE"
	ActionDelete  Action = "DELETE"
	ActionReplace Action = "REPLACE"
	ActionNoOp    Action = "NOOP"
)

// Plan represents a calculated execution plan.
type Plan struct {
	Metadata *PlanMetadata     `json:"metadata"`
	Changes  []*ResourceChange `json:"changes"`
	Summary  *PlanSummary      `json:"summary"`
	Outputs  map[string]any    `json:"outputs,omitempty"`
}

type PlanMetadata struct {
	Timestamp string `json:"timestamp"`
	Lineage   string `json:"lineage,omitempty"`
	Serial    int    `json:"serial"`
}

type ResourceChange struct {
	Address string                   `json:"address"`
	Action  Action                   `json:"action"`
	Desired *Resource                `json:"resource,omitempty"`
	Prior   *Resource                `json:"prior,omitempty"`
	Diff    map[string]*PropertyDiff `json:"diff,omitempty"`

	// ReplaceReasons names the immutable attributes whose change forces
	// a delete-then-create, when Action is REPLACE.
	ReplaceReasons []string `json:"replaceReasons,omitempty"`
}

type PropertyDiff struct {
	Before            any    `json:"before,omitempty"`
	After             any    `json:"after,omitempty"`
	Sensitive         bool   `json:"sensitive,omitempty"`
	ForcesReplacement bool   `json:"forcesReplacement,omitempty"`
	Action            string `json:"action"` // "create", "update", "delete", "noop"
}

type PlanSummary struct {
	Create  int `json:"create"`
	Update  int `json:"update"`
	Delete  int `json:"delete"`
	Replace int `json:"replace"`
	NoOp    int `json:"noop"`
}

// Provider returns the provider responsible for the change.
func (c *ResourceChange) Provider() string {
	if c.Desired != nil {
		return c.Desired.Provider
	}
	if c.Prior != nil {
		return c.Prior.Provider
	}
	return ""
}

// Count bumps the summary counter matching the action.
func (s *PlanSummary) Count(a Action) {
	switch a {
	case ActionCreate:
		s.Create++
	case ActionUpdate:
		s.Update++
	case ActionDelete:
		s.Delete++
	case ActionReplace:
		s.Replace++
	default:
		s.NoOp++
	}
}

// Empty reports whether the plan contains no changes.
func (p *Plan) Empty() bool {
	return len(p.Changes) == 0
}
