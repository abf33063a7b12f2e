package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/weft-io/weft/internal/eval"
	"github.com/weft-io/weft/internal/ir"
	"github.com/weft-io/weft/internal/provider"
	"github.com/weft-io/weft/internal/schema"
	"github.com/weft-io/weft/internal/state"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// colorize returns the ANSI code, or nothing when --no-color is set.
func colorize(code string) string {
	if noColor {
		return ""
	}
	return code
}

// resolveWorkingDir derives the project directory and entry point from
// an optional positional argument, which may be a directory or a
// single template file.
func resolveWorkingDir(args []string) (wd, entryPoint string, err error) {
	wd, err = os.Getwd()
	if err != nil {
		return "", "", fmt.Errorf("failed to get working directory: %w", err)
	}
	entryPoint = "main.pkl"

	if len(args) > 0 {
		absPath, err := filepath.Abs(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return "", "", fmt.Errorf("failed to stat path %s: %w", args[0], err)
		}
		if info.IsDir() {
			wd = absPath
		} else {
			wd = filepath.Dir(absPath)
			entryPoint = filepath.Base(absPath)
		}
	}
	return wd, entryPoint, nil
}

// loadBackend builds the state backend for a project directory. A
// .weft/backend.yaml file selects and configures a remote backend;
// without one, state lives in a local file under .weft/.
func loadBackend(wd string) (state.Backend, error) {
	cfgPath := filepath.Join(wd, ".weft", "backend.yaml")
	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return state.NewManager(filepath.Join(wd, ".weft", "state.json")), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backend config: %w", err)
	}

	var cfg state.BackendConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse backend config: %w", err)
	}
	return state.NewBackend(&cfg)
}

// loadConfigIfPresent evaluates the project configuration when its
// entry point exists, so state-driven commands still honor lifecycle
// rules and provider settings. A missing entry point yields nil.
func loadConfigIfPresent(ctx context.Context, wd, entryPoint string, varFiles []string, varFlags map[string]string) (*ir.Config, error) {
	if _, err := os.Stat(filepath.Join(wd, entryPoint)); os.IsNotExist(err) {
		return nil, nil
	}
	cfg, err := eval.NewEvaluator(wd).LoadConfig(ctx, entryPoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	vars, err := gatherVars(varFiles, varFlags)
	if err != nil {
		return nil, err
	}
	if err := eval.Resolve(cfg, vars, schema.Builtin()); err != nil {
		return nil, err
	}
	return cfg, nil
}

// gatherVars layers variable values from the environment, --var-file
// flags, and --var flags, later sources winning.
func gatherVars(varFiles []string, varFlags map[string]string) (map[string]string, error) {
	sources := make([]map[string]string, 0, len(varFiles)+1)
	for _, path := range varFiles {
		vars, err := eval.LoadVarFile(path)
		if err != nil {
			return nil, err
		}
		sources = append(sources, vars)
	}
	sources = append(sources, varFlags)
	return eval.MergeVars(sources...), nil
}

// loadStateProviders auto-loads all providers referenced by state resources (needed for DELETE).
func loadStateProviders(registry *provider.Registry, st *ir.State) error {
	seen := make(map[string]bool)
	for _, res := range st.Resources {
		if res.Provider != "" && !seen[res.Provider] {
			seen[res.Provider] = true
			if err := registry.LoadProvider(res.Provider); err != nil {
				return fmt.Errorf("failed to load provider %s: %w", res.Provider, err)
			}
		}
	}
	return nil
}

// actionSymbol maps an action to its plan rendering prefix.
func actionSymbol(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "+"
	case ir.ActionDelete:
		return "-"
	case ir.ActionReplace:
		return "-/+"
	case ir.ActionNoOp:
		return " "
	default:
		return "~"
	}
}

// actionColor maps an action to its ANSI color.
func actionColor(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return colorize(colorGreen)
	case ir.ActionDelete:
		return colorize(colorRed)
	case ir.ActionUpdate, ir.ActionReplace:
		return colorize(colorYellow)
	default:
		return colorize(colorReset)
	}
}

// renderPlanChanges prints the detailed change list for a plan.
func renderPlanChanges(plan *ir.Plan) {
	for _, change := range plan.Changes {
		if change.Action == ir.ActionNoOp {
			continue
		}

		symbol := actionSymbol(change.Action)
		color := actionColor(change.Action)
		reset := colorize(colorReset)

		var resourceType, resourceName string
		if change.Desired != nil {
			resourceType = change.Desired.Type
			resourceName = change.Desired.Name
		} else if change.Prior != nil {
			resourceType = change.Prior.Type
			resourceName = change.Prior.Name
		}

		fmt.Printf("\n%s  # %s will be %s%s", color, change.Address, change.Action, reset)
		if len(change.ReplaceReasons) > 0 {
			fmt.Printf("%s (forced by %v)%s", color, change.ReplaceReasons, reset)
		}
		fmt.Println()
		fmt.Printf("%s  %s resource \"%s\" \"%s\" {\n", color, symbol, resourceType, resourceName)

		if len(change.Diff) > 0 {
			renderPropertyDiff(change, color)
		} else if change.Desired != nil {
			for k, v := range change.Desired.Properties {
				fmt.Printf("%s      %s = %s\n", color, k, formatValue(v))
			}
		} else if change.Prior != nil {
			for k, v := range change.Prior.Properties {
				fmt.Printf("%s      %s = %s\n", color, k, formatValue(v))
			}
		}
		fmt.Printf("%s    }%s\n", color, reset)
	}
}

// renderPropertyDiff prints structured property diffs. Sensitive
// values are redacted.
func renderPropertyDiff(change *ir.ResourceChange, color string) {
	reset := colorize(colorReset)
	for key, diff := range change.Diff {
		before := formatValue(diff.Before)
		after := formatValue(diff.After)
		if diff.Sensitive {
			before, after = "(sensitive)", "(sensitive)"
		}

		suffix := ""
		if diff.ForcesReplacement {
			suffix = " # forces replacement"
		}

		switch diff.Action {
		case "create":
			fmt.Printf("%s      + %s = %s%s%s\n", colorize(colorGreen), key, after, suffix, reset)
		case "delete":
			fmt.Printf("%s      - %s = %s%s\n", colorize(colorRed), key, before, reset)
		case "update":
			fmt.Printf("%s      ~ %s = %s -> %s%s%s\n", colorize(colorYellow), key, before, after, suffix, reset)
		default:
			fmt.Printf("%s        %s = %s\n", color, key, after)
		}
	}
}

// formatValue returns a human-readable representation of a value.
func formatValue(v any) string {
	if v == nil {
		return "null"
	}
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// renderPlanSummary prints the plan summary counts.
func renderPlanSummary(plan *ir.Plan) {
	fmt.Println("\nPlan Summary:")
	fmt.Printf("  Create:  %d\n", plan.Summary.Create)
	fmt.Printf("  Update:  %d\n", plan.Summary.Update)
	fmt.Printf("  Delete:  %d\n", plan.Summary.Delete)
	fmt.Printf("  Replace: %d\n", plan.Summary.Replace)
	fmt.Printf("  NoOp:    %d\n", plan.Summary.NoOp)
}
