// Package provider defines the capability contract between the engine
// core and resource providers. Providers exchange opaque JSON payloads
// for configuration and state so the core never interprets
// resource-specific attributes.
package provider

import "context"

// Action is the change a provider decides for a single resource.
type Action int32

const (
	ActionNoop Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
	ActionReplace
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "CREATE"
	case ActionUpdate:
		return "UPDATE"
	case ActionDelete:
		return "DELETE"
	case ActionReplace:
		return "REPLACE"
	default:
		return "NOOP"
	}
}

// DiagnosticSeverity indicates how severe a provider diagnostic is.
type DiagnosticSeverity int32

const (
	SeverityError DiagnosticSeverity = iota
	SeverityWarning
)

// Diagnostic is a structured message returned by a provider.
type Diagnostic struct {
	Severity DiagnosticSeverity
	Summary  string
	Detail   string
}

type ConfigureRequest struct {
	// ConfigJSON carries provider-level settings such as region or
	// connection parameters.
	ConfigJSON []byte
}

type ConfigureResponse struct {
	Diagnostics []*Diagnostic
}

type PlanRequest struct {
	Type              string
	Name              string
	DesiredConfigJSON []byte
	// PriorStateJSON is nil when the resource has never been created.
	PriorStateJSON []byte
}

type PlanResponse struct {
	Action            Action
	ChangedAttributes []string
	Diagnostics       []*Diagnostic
}

type ApplyRequest struct {
	Type              string
	Name              string
	Action            Action
	DesiredConfigJSON []byte
	PriorStateJSON    []byte
}

type ApplyResponse struct {
	NewStateJSON []byte
	Diagnostics  []*Diagnostic
}

type ReadRequest struct {
	Type             string
	Name             string
	CurrentStateJSON []byte
}

type ReadResponse struct {
	Exists       bool
	NewStateJSON []byte
}

type DeleteRequest struct {
	Type             string
	Name             string
	CurrentStateJSON []byte
}

type DeleteResponse struct {
	Diagnostics []*Diagnostic
}

// Provider is implemented by every resource provider. All methods must
// be safe for concurrent use; the engine applies independent resources
// in parallel.
type Provider interface {
	Configure(ctx context.Context, req *ConfigureRequest) (*ConfigureResponse, error)
	Plan(ctx context.Context, req *PlanRequest) (*PlanResponse, error)
	Apply(ctx context.Context, req *ApplyRequest) (*ApplyResponse, error)
	Read(ctx context.Context, req *ReadRequest) (*ReadResponse, error)
	Delete(ctx context.Context, req *DeleteRequest) (*DeleteResponse, error)
}
