// Command mergeq compiles merge configurations, records merge sessions and
// replays them.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/mergeq/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
