package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/eval"
	"github.com/weft-io/weft/internal/ir"
	"github.com/weft-io/weft/internal/provider"
	"github.com/weft-io/weft/internal/schema"
	"github.com/weft-io/weft/internal/state"
)

var (
	applyAutoApprove bool
	applyVars        map[string]string
	applyVarFiles    []string
	applyTargets     []string
	applyParallelism int
)

var applyCmd = &cobra.Command{
	Use:   "apply [dir|file]",
	Short: "Apply a configuration",
	Long:  `Builds or changes infrastructure according to weft configuration files.`,
	RunE:  runApply,
}

func init() {
	applyCmd.Flags().BoolVar(&applyAutoApprove, "auto-approve", false, "Skip interactive approval of plan before applying")
	applyCmd.Flags().StringToStringVar(&applyVars, "var", nil, "Set a variable value (format: name=value)")
	applyCmd.Flags().StringSliceVar(&applyVarFiles, "var-file", nil, "Read variable values from a YAML file")
	applyCmd.Flags().StringSliceVar(&applyTargets, "target", nil, "Limit the apply to a resource address and its dependencies")
	applyCmd.Flags().IntVar(&applyParallelism, "parallelism", 0, "Maximum number of concurrent resource operations")
}

func runApply(cmd *cobra.Command, args []string) error {
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
	if applyParallelism > 0 {
		eng.Parallelism = applyParallelism
	}

	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	fmt.Print("Loading configuration... ")
	cfg, err := evaluator.LoadConfig(ctx, entryPoint, nil)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("failed to load config: %w", err)
	}

	vars, err := gatherVars(applyVarFiles, applyVars)
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
	plan, err := eng.CreatePlanWithTargets(ctx, cfg, currentState, applyTargets)
	if err != nil {
		fmt.Println("FAILED")
		return fmt.Errorf("plan generation failed: %w", err)
	}
	fmt.Println("OK")

	if plan.Empty() {
		fmt.Println("No changes. Infrastructure is up-to-date.")
		return nil
	}

	fmt.Println("\nWeft will perform the following actions:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !applyAutoApprove {
		if !confirm("\nDo you want to perform these actions? (y/n): ") {
			fmt.Println("Apply cancelled.")
			return nil
		}
	}

	fmt.Printf("\nApplying %d changes...\n\n", len(plan.Changes))

	newState, applyErr := applyWithProgress(ctx, eng, plan, currentState, backend)
	if applyErr != nil {
		return fmt.Errorf("apply failed: %w", applyErr)
	}

	fmt.Printf("\nApply complete! Resources: %d added, %d changed, %d destroyed.\n",
		plan.Summary.Create, plan.Summary.Update+plan.Summary.Replace, plan.Summary.Delete)

	if len(newState.Outputs) > 0 {
		fmt.Println("\nOutputs:")
		for k, v := range newState.Outputs {
			fmt.Printf("  %s = %v\n", k, v)
		}
	}

	return nil
}

// applyWithProgress runs the plan with per-resource progress output and
// a persist hook, so the backend records each completed operation.
func applyWithProgress(ctx context.Context, eng *engine.Engine, plan *ir.Plan, currentState *ir.State, backend state.Backend) (*ir.State, error) {
	opts := engine.ApplyOptions{
		Callback: printApplyEvent,
		Persist: func(s *ir.State) error {
			return backend.Write(ctx, s)
		},
	}
	return eng.ApplyPlanWithOptions(ctx, plan, currentState, opts)
}

func printApplyEvent(event engine.ApplyEvent) {
	switch event.Status {
	case engine.StatusStarted:
		fmt.Printf("%s: %s...\n", event.Address, actionVerb(event.Action))
	case engine.StatusCompleted:
		fmt.Printf("%s%s: done after %s%s\n", colorize(colorGreen), event.Address, event.Duration.Round(10*time.Millisecond), colorize(colorReset))
	case engine.StatusFailed:
		fmt.Printf("%s%s: FAILED (%v)%s\n", colorize(colorRed), event.Address, event.Error, colorize(colorReset))
	case engine.StatusSkipped:
		fmt.Printf("%s%s: skipped (dependency failed)%s\n", colorize(colorYellow), event.Address, colorize(colorReset))
	}
}

func actionVerb(action ir.Action) string {
	switch action {
	case ir.ActionCreate:
		return "creating"
	case ir.ActionUpdate:
		return "updating"
	case ir.ActionDelete:
		return "destroying"
	case ir.ActionReplace:
		return "replacing"
	default:
		return "refreshing"
	}
}

func confirm(prompt string) bool {
	fmt.Print(prompt)
	var response string
	fmt.Scanln(&response)
	return response == "y" || response == "yes"
}
