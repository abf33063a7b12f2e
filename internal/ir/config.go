package ir

// Config represents the top-level configuration.
type Config struct {
	Variables map[string]*Variable `pkl:"variables"`
	// Providers holds per-provider settings blocks, keyed by provider
	// name, delivered verbatim to the provider's Configure call.
	Providers map[string]map[string]any `pkl:"providers"`
	Resources []*Resource               `pkl:"resources"`
	Outputs   map[string]any            `pkl:"outputs"`
}

// Variable declares an externally-supplied input value.
// A variable with neither a supplied value nor a default fails evaluation.
type Variable struct {
	Type        string `pkl:"type" validate:"omitempty,oneof=string number bool"`
	Default     any    `pkl:"default"`
	Description string `pkl:"description"`
	Sensitive   bool   `pkl:"sensitive"`
}

// HasDefault reports whether the variable declares a default value.
func (v *Variable) HasDefault() bool {
	return v != nil && v.Default != nil
}
