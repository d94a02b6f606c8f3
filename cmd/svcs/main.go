// Package main is the entry point for the svcs binary.
package main

import (
	"fmt"
	"os"

	"github.com/svcs-dev/svcs/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
