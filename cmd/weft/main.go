// Package main provides the weft template compiler CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/weft/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
