// Package main is the entry point for the mudra CLI.
package main

import (
	"os"

	"github.com/ayusman/mudra/cmd/mudra/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
