// Package main provides the sitecapture CLI entrypoint.
package main

import (
	"fmt"
	"os"

	"github.com/lukemcguire/sitecapture/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
