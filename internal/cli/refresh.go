package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/provider"
	"github.com/weft-io/weft/internal/schema"
)

var (
	refreshVars     map[string]string
	refreshVarFiles []string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh [dir]",
	Short: "Update state to match real infrastructure",
	Long: `Reads the current state of all managed resources from their providers
and updates the state to reflect actual infrastructure.

This detects drift between what weft recorded and what actually exists.
Resources that no longer exist are dropped from state.`,
	RunE: runRefresh,
}

func init() {
	refreshCmd.Flags().StringToStringVar(&refreshVars, "var", nil, "Set a variable value (format: name=value)")
	refreshCmd.Flags().StringSliceVar(&refreshVarFiles, "var-file", nil, "Read variable values from a YAML file")
}

func runRefresh(cmd *cobra.Command, args []string) error {
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
		fmt.Println("No resources to refresh.")
		return nil
	}

	cfg, err := loadConfigIfPresent(ctx, wd, entryPoint, refreshVarFiles, refreshVars)
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

	fmt.Printf("Refreshing %d resource(s)...\n", len(currentState.Resources))

	if err := eng.Refresh(ctx, currentState); err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}

	if err := backend.Write(ctx, currentState); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	fmt.Printf("Refresh complete. %d resource(s) in state.\n", len(currentState.Resources))
	return nil
}
