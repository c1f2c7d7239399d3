package main

import (
	"github.com/spf13/cobra"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "localsip",
	Short: "Local SOME/IP control plane tooling",
	Long: `localsip bundles operator tooling for the local SOME/IP routing
fabric: E2E CRC computation, a mock routing daemon for integration
testing, and a command sender speaking the local control protocol.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
