// Package main is the entry point for the bilisync application.
package main

import (
	"os"

	"github.com/shirayuki/bilisync/cmd/bilisync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
