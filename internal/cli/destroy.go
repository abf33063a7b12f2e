package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/provider"
	"github.com/weft-io/weft/internal/schema"
)

var (
	destroyAutoApprove bool
	destroyVars        map[string]string
	destroyVarFiles    []string
)

var destroyCmd = &cobra.Command{
	Use:   "destroy [dir]",
	Short: "Destroy all managed infrastructure",
	Long: `Destroys all resources managed by weft.

This command is the inverse of 'weft apply'. It deletes every resource
tracked in the state, in reverse dependency order.`,
	RunE: runDestroy,
}

func init() {
	destroyCmd.Flags().BoolVar(&destroyAutoApprove, "auto-approve", false, "Skip interactive approval before destroying")
	destroyCmd.Flags().StringToStringVar(&destroyVars, "var", nil, "Set a variable value (format: name=value)")
	destroyCmd.Flags().StringSliceVar(&destroyVarFiles, "var-file", nil, "Read variable values from a YAML file")
}

func runDestroy(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkingDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	backend, err := loadBackend(wd)
	if err != nil {
		return err
	}
	registry := provider.NewRegistry()
	eng := engine.NewEngine(registry, schema.Builtin())

	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	currentState, err := backend.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	if len(currentState.Resources) == 0 {
		fmt.Println("No resources to destroy.")
		return nil
	}

	// The configuration, when still on disk, supplies provider settings
	// and lifecycle protections for the teardown.
	cfg, err := loadConfigIfPresent(ctx, wd, entryPoint, destroyVarFiles, destroyVars)
	if err != nil {
		return err
	}
	if cfg != nil {
		if err := eng.ConfigureProviders(ctx, cfg); err != nil {
			return err
		}
	}

	if err := loadStateProviders(registry, currentState); err != nil {
		return err
	}

	plan, err := eng.CreateDestroyPlan(ctx, cfg, currentState)
	if err != nil {
		return fmt.Errorf("destroy plan generation failed: %w", err)
	}

	fmt.Println("Weft will destroy the following resources:")
	renderPlanChanges(plan)
	renderPlanSummary(plan)

	if !destroyAutoApprove {
		if !confirm("\nDo you really want to destroy all resources? (y/n): ") {
			fmt.Println("Destroy cancelled.")
			return nil
		}
	}

	fmt.Printf("\nDestroying %d resource(s)...\n\n", len(plan.Changes))

	if _, err := applyWithProgress(ctx, eng, plan, currentState, backend); err != nil {
		return fmt.Errorf("destroy failed: %w", err)
	}

	fmt.Println("\nDestroy complete! All resources have been deleted.")
	return nil
}
