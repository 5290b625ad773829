// Command simkernel simulates activity plans against mission models and
// inspects recorded runs.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/simkernel/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		// Commands report their own failures as ExitErrors; anything else
		// (bad flags, missing arguments) is printed here.
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.GetExitCode(err))
	}
}
