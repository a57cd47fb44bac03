// Package main provides the entry point for the cantor CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/cantor/cmd/cantor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
