// Command fliess imports production catalogs, runs the flow-shop simulation
// and inspects recorded runs.
package main

import (
	"fmt"
	"os"

	"github.com/nikonych/fliessfertigung/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "fliess:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
