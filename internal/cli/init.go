package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new weft project",
	Long:  `Creates a new weft project with default configuration files.`,
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := os.MkdirAll(".weft", 0o755); err != nil {
		return fmt.Errorf("failed to create .weft directory: %w", err)
	}

	mainPkl := "main.pkl"
	if _, err := os.Stat(mainPkl); os.IsNotExist(err) {
		content := `// weft configuration

variables {
  // Declare externally-supplied values here, e.g.
  // ["region"] { type = "string"; default = "us-east-1" }
}

providers {
  // Provider settings blocks, e.g.
  // ["aws"] { ["region"] = "var://region" }
  // ["postgres"] { ["dsn"] = "var://adminDsn" }
}

resources {
  // Declare resources here, e.g.
  // new {
  //   type = "aws_vpc"
  //   name = "main"
  //   provider = "aws"
  //   properties { ["cidrBlock"] = "10.0.0.0/16" }
  // }
}

outputs {
  // Export values here, e.g.
  // ["vpc_id"] = "ref://aws_vpc/main/id"
}
`
		if err := os.WriteFile(mainPkl, []byte(content), 0o644); err != nil {
			return fmt.Errorf("failed to create %s: %w", mainPkl, err)
		}
		fmt.Printf("Created %s\n", mainPkl)
	}

	fmt.Println("\nWeft initialized successfully!")
	fmt.Println("Next steps:")
	fmt.Println("  1. Edit main.pkl to define your infrastructure")
	fmt.Println("  2. Run 'weft plan' to see what will be created")
	fmt.Println("  3. Run 'weft apply' to create your infrastructure")

	return nil
}
