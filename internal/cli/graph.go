package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/weft-io/weft/internal/engine"
	"github.com/weft-io/weft/internal/eval"
	"github.com/weft-io/weft/internal/schema"
)

var graphCmd = &cobra.Command{
	Use:   "graph [dir|file]",
	Short: "Output the dependency graph in DOT format",
	Long: `Generates a visual representation of the resource dependency graph
in Graphviz DOT format. Pipe the output to 'dot' to generate an image:

  weft graph | dot -Tpng > graph.png`,
	RunE: runGraph,
}

func runGraph(cmd *cobra.Command, args []string) error {
	wd, entryPoint, err := resolveWorkingDir(args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	evaluator := eval.NewEvaluator(wd)
	cfg, err := evaluator.LoadConfig(ctx, entryPoint, nil)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := eval.Resolve(cfg, eval.MergeVars(), schema.Builtin()); err != nil {
		return err
	}

	dag, err := engine.BuildDAG(cfg.Resources)
	if err != nil {
		return fmt.Errorf("failed to build graph: %w", err)
	}

	fmt.Println("digraph weft {")
	fmt.Println("  rankdir = \"BT\";")
	fmt.Println("  node [shape = rect];")
	fmt.Println()

	for _, res := range cfg.Resources {
		fmt.Printf("  %q;\n", res.Addr())
	}
	fmt.Println()

	for _, res := range cfg.Resources {
		for _, dep := range dag.Dependencies(res.Addr()) {
			fmt.Printf("  %q -> %q;\n", res.Addr(), dep)
		}
	}

	fmt.Println("}")
	return nil
}
