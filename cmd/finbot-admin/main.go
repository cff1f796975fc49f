// Package main is the entry point for the finbot-admin CLI.
package main

import (
	"os"

	"finbot/cmd/finbot-admin/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
