package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/eval"
	"github.com/weft-io/weft/internal/provider"
	"github.com/weft-io/weft/internal/schema"
)

var (
	planOutFile  string
	planVars     map[string]string
	planVarFiles []string
	planTargets  []string
)

var planCmd = &cobra.Command{
	Use:   "plan [dir|file]",
	Short: "Generate an execution plan",
	Long: `Generates an execution plan showing what actions weft will take
to reach the desired state defined in your configuration.

The plan shows:
  • Resources to be created
  • Resources to be updated (with diff)
  • Resources to be deleted`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOutFile, "out", "o", "", "Write plan to file as JSON")
	planCmd.Flags().StringToStringVar(&planVars, "var", nil, "Set a variable value (format: name=value)")
	planCmd.Flags().StringSliceVar(&planVarFiles, "var-file", nil, "Read variable values from a YAML file")
	planCmd.Flags().StringSliceVar(&planTargets, "target", nil, "Limit the plan to a resource address and its dependencies")
}

func runPlan(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkingDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	evaluator := eval.NewEvaluator(wd)
	backend, err := loadBackend(wd)
	if err != nil {
		return err
	}
	registry := provider.NewRegistry()
	schemas := schema.Builtin()
	eng := engine.NewEngine(registry, schemas)

	fmt.Print("Loading configuration... ")
	cfg, err := evaluator.LoadConfig(ctx, entryPoint, nil)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("failed to load config: %w", err)
	}

	vars, err := gatherVars(planVarFiles, planVars)
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	if err := eval.Resolve(cfg, vars, schemas); err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	if err := eng.ConfigureProviders(ctx, cfg); err != nil {
		return err
	}

	currentState, err := backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}
	if err := loadStateProviders(registry, currentState); err != nil {
		return err
	}

	fmt.Print("Calculating plan... ")
	plan, err := eng.CreatePlanWithTargets(ctx, cfg, currentState, planTargets)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Println("OK")

	renderPlanSummary(plan)

	if plan.Empty() {
		fmt.Println("\nNo changes. Infrastructure is up-to-date.")
	} else {
		fmt.Println("\nWeft will perform the following actions:")
		renderPlanChanges(plan)
	}

	if planOutFile != "" {
		data, err := json.MarshalIndent(plan, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal plan: %w", err)
		}
		if err := os.WriteFile(planOutFile, append(data, '\n'), 0o644); err != nil {
			return fmt.Errorf("failed to write plan file: %w", err)
		}
		fmt.Printf("\nPlan written to %s\n", planOutFile)
	}

	return nil
}
