package main

import (
	"fmt"
	"os"

	"github.com/weft-io/weft/internal/cli"

	// Providers register themselves with the provider registry.
	_ "github.com/weft-io/weft/providers/aws"
	_ "github.com/weft-io/weft/providers/null"
	_ "github.com/weft-io/weft/providers/postgres"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
