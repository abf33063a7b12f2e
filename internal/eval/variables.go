package eval

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/weft-io/weft/internal/ir"
)

// varScheme prefixes a property value that stands for a declared
// variable, e.g. "var://region".
const varScheme = "var://"

// envVarPrefix names process environment variables that supply
// variable values, e.g. WEFT_VAR_region.
const envVarPrefix = "WEFT_VAR_"

// LoadVarFile reads a YAML file of variable values.
func LoadVarFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read var file: %w", err)
	}
	raw := make(map[string]any)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, &ParseError{File: path, Err: err}
	}
	vars := make(map[string]string, len(raw))
	for k, v := range raw {
		vars[k] = fmt.Sprintf("%v", v)
	}
	return vars, nil
}

// MergeVars layers variable values by precedence: environment first,
// then var files, then explicit flags, later sources winning.
func MergeVars(sources ...map[string]string) map[string]string {
	out := make(map[string]string)
	for name, value := range envVars() {
		out[name] = value
	}
	for _, src := range sources {
		for k, v := range src {
			out[k] = v
		}
	}
	return out
}

func envVars() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, envVarPrefix) {
			continue
		}
		rest := strings.TrimPrefix(kv, envVarPrefix)
		name, value, ok := strings.Cut(rest, "=")
		if ok && name != "" {
			out[name] = value
		}
	}
	return out
}

// resolveVariables replaces var:// placeholders in resource properties
// with their supplied or default values.
func resolveVariables(cfg *ir.Config, supplied map[string]string) error {
	values := make(map[string]any, len(cfg.Variables))
	for name, decl := range cfg.Variables {
		raw, ok := supplied[name]
		if !ok {
			if !decl.HasDefault() {
				return &MissingVariableError{Name: name}
			}
			values[name] = decl.Default
			continue
		}
		v, err := coerce(raw, decl.Type)
		if err != nil {
			return fmt.Errorf("variable %q: %w", name, err)
		}
		values[name] = v
	}

	var missing error
	substitute := func(s string) any {
		name, ok := strings.CutPrefix(s, varScheme)
		if !ok {
			return s
		}
		v, declared := values[name]
		if !declared {
			if missing == nil {
				missing = &MissingVariableError{Name: name}
			}
			return s
		}
		return v
	}

	for _, res := range cfg.Resources {
		res.Properties = ir.WalkStrings(res.Properties, substitute).(map[string]any)
	}
	for name, settings := range cfg.Providers {
		cfg.Providers[name] = ir.WalkStrings(settings, substitute).(map[string]any)
	}
	if len(cfg.Outputs) > 0 {
		cfg.Outputs = ir.WalkStrings(cfg.Outputs, substitute).(map[string]any)
	}
	return missing
}

func coerce(raw, typ string) (any, error) {
	switch typ {
	case "number":
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", raw)
		}
		return n, nil
	case "bool":
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected a bool, got %q", raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}
