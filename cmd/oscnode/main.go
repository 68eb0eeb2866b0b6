// Package main is the entry point for the oscnode tray agent and its
// command-line controls.
package main

import (
	"os"

	"github.com/opensourcecitizen/oscnode/internal/cli"
)

func main() {
	if err := cli.Execute(embeddedConfig); err != nil {
		os.Exit(1)
	}
}
