// localsip is a small operator tool around the local SOME/IP control
// plane: it computes E2E CRC values, runs a mock routing daemon and sends
// control commands to a running daemon.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
