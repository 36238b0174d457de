// Command deps-fetch is the CLI entry point: all behaviour lives in the
// cmd package, main only wires the exit code.
package main

import (
	"fmt"
	"os"

	"github.com/flanksource/deps-fetch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
