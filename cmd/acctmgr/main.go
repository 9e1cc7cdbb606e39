//go:build cgo
// +build cgo

package main

import (
	"errors"
	"log"
	"os"

	"github.com/ceems-dev/acctmgr/pkg/acctmgr/cli"
)

// Main entry point for `acctmgr` app.
func main() {
	// Create a new app
	acctMgr := cli.NewAcctMgr()

	// Main entrypoint of the app. Directive errors are already printed.
	if err := acctMgr.Main(); err != nil {
		if !errors.Is(err, cli.ErrFailed) {
			log.Println(err)
		}

		os.Exit(1)
	}
}
