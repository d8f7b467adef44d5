// Package main provides the entry point for the tunebook CLI.
package main

import (
	"os"

	"github.com/tunebook/tunebook/cmd/tunebook/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
