package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/eval"
	"github.com/weft-io/weft/internal/schema"
)

var (
	validateVars     map[string]string
	validateVarFiles []string
)

var validateCmd = &cobra.Command{
	Use:   "validate [dir|file]",
	Short: "Validate configuration files",
	Long: `Evaluates the configuration, validates every resource against its
type schema, and checks that references resolve and the dependency
graph is acyclic. No state is read and no provider is called.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringToStringVar(&validateVars, "var", nil, "Set a variable value (format: name=value)")
	validateCmd.Flags().StringSliceVar(&validateVarFiles, "var-file", nil, "Read variable values from a YAML file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkingDir(args)
	if err != nil {
		return err
	}

	evaluator := eval.NewEvaluator(wd)

	fmt.Printf("Checking %s... ", entryPoint)
	cfg, err := evaluator.LoadConfig(cmd.Context(), entryPoint, nil)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}

	vars, err := gatherVars(validateVarFiles, validateVars)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	if err := eval.Resolve(cfg, vars, schema.Builtin()); err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}

	if _, err := engine.BuildDAG(cfg.Resources); err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("validation failed: %w", err)
	}
	fmt.Println("OK")

	fmt.Printf("\nConfiguration is valid! %d resource(s) declared.\n", len(cfg.Resources))
	return nil
}
