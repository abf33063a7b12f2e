package eval

import "fmt"

// ParseError reports a template that could not be evaluated.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingVariableError reports a declared variable with no supplied
// value and no default.
type MissingVariableError struct {
	Name string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("no value for required variable %q", e.Name)
}

// UnresolvedReferenceError reports a reference to a resource that does
// not exist in the configuration.
type UnresolvedReferenceError struct {
	// Source is the address of the resource holding the reference.
	Source    string
	Reference string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("resource %s references unknown resource %s", e.Source, e.Reference)
}
