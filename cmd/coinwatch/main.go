// Package main is the entry point for coinwatch.
package main

import (
	"os"

	"coinwatch/cmd/coinwatch/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
