// Package main provides the LeapLedger CLI.
package main

import (
	"os"

	"github.com/leapstack-labs/leapledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
