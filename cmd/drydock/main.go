// Package main is the entry point for the drydock CLI binary.
package main

import (
	"os"

	"github.com/irahardianto/drydock/cmd/drydock/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
