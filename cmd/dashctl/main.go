// Package main provides dashctl, a command line client that edits
// dashboards directly in the configured record store.
package main

import (
	"os"
)

func main() {
	a := &app{out: os.Stdout, open: openFromConfig}
	if err := newRootCmd(a).Execute(); err != nil {
		os.Exit(1)
	}
}
