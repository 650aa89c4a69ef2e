// Command attemptctl drives the attempt execution core from a terminal.
package main

import (
	"fmt"
	"os"

	"github.com/vibe-kanban/attemptcore/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
