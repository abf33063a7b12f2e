package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Manage weft state",
	Long:  `Commands for inspecting and modifying weft state.`,
}

var stateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List resources in state",
	RunE:  runStateList,
}

var stateShowCmd = &cobra.Command{
	Use:   "show <address>",
	Short: "Show attributes of a single resource",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateShow,
}

var stateRmCmd = &cobra.Command{
	Use:   "rm <address>",
	Short: "Remove a resource from state (does not destroy)",
	Args:  cobra.ExactArgs(1),
	RunE:  runStateRm,
}

func init() {
	stateCmd.AddCommand(stateListCmd)
	stateCmd.AddCommand(stateShowCmd)
	stateCmd.AddCommand(stateRmCmd)
}

func runStateList(cmd *cobra.Command, args []string) error {
	wd, _, err := resolveWorkingDir(nil)
	if err != nil {
		return err
	}
	backend, err := loadBackend(wd)
	if err != nil {
		return err
	}

	s, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	if len(s.Resources) == 0 {
		fmt.Println("No resources in state.")
		return nil
	}

	fmt.Printf("State version: %d, serial: %d, lineage: %s\n\n", s.Version, s.Serial, s.Lineage)
	for _, res := range s.Resources {
		fmt.Printf("  %s (provider: %s)\n", res.Addr(), res.Provider)
	}
	fmt.Printf("\nTotal: %d resource(s)\n", len(s.Resources))

	return nil
}

func runStateShow(cmd *cobra.Command, args []string) error {
	wd, _, err := resolveWorkingDir(nil)
	if err != nil {
		return err
	}
	backend, err := loadBackend(wd)
	if err != nil {
		return err
	}

	s, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	target := args[0]
	res := s.Lookup(target)
	if res == nil {
		return fmt.Errorf("resource %s not found in state", target)
	}

	fmt.Printf("# %s\n", res.Addr())
	fmt.Printf("  provider = %s\n", res.Provider)
	fmt.Printf("  type     = %s\n", res.Type)
	fmt.Printf("  name     = %s\n", res.Name)

	if len(res.Inputs) > 0 {
		fmt.Println("\n  Inputs:")
		for k, v := range res.Inputs {
			fmt.Printf("    %s = %v\n", k, v)
		}
	}
	if len(res.Outputs) > 0 {
		fmt.Println("\n  Outputs:")
		for k, v := range res.Outputs {
			fmt.Printf("    %s = %v\n", k, v)
		}
	}
	if len(res.Dependencies) > 0 {
		fmt.Println("\n  Dependencies:")
		for _, dep := range res.Dependencies {
			fmt.Printf("    %s\n", dep)
		}
	}

	return nil
}

func runStateRm(cmd *cobra.Command, args []string) error {
	wd, _, err := resolveWorkingDir(nil)
	if err != nil {
		return err
	}
	backend, err := loadBackend(wd)
	if err != nil {
		return err
	}

	if err := backend.Lock(); err != nil {
		return err
	}
	defer backend.Unlock()

	s, err := backend.Read(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read state: %w", err)
	}

	target := args[0]
	if s.Lookup(target) == nil {
		return fmt.Errorf("resource %s not found in state", target)
	}

	s.Remove(target)
	s.Serial++
	if err := backend.Write(cmd.Context(), s); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}

	fmt.Printf("Removed %s from state (resource was NOT destroyed)\n", target)
	return nil
}
