// Command pvl translates validation test cases and executes steps.
package main

import (
	"fmt"
	"os"

	"github.com/roach88/pvl/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
