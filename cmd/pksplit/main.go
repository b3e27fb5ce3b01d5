// Command pksplit splits a partition fragment stream into one sub-stream per
// value of a partition-key component.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/roach88/pksplit/internal/cli"
)

func main() {
	err := cli.NewRootCommand().Execute()
	if err != nil {
		// ExitErrors have already been reported by the command
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
	}
	os.Exit(cli.GetExitCode(err))
}
