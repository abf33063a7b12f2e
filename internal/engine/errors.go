package engine

import (
	"fmt"
	"strings"
)

// CycleError reports a reference cycle in the resource graph, naming
// every resource on the cycle.
type CycleError struct {
	Addresses []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected between resources: %s", strings.Join(e.Addresses, ", "))
}

// ActionError reports a provider operation that failed for one
// resource. The engine never discards it; dependent resources are
// skipped and the error is surfaced in the aggregated apply result.
type ActionError struct {
	Address string
	Action  string
	Err     error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", strings.ToLower(e.Action), e.Address, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }
