package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ecukit/localsip/logging"
	"github.com/ecukit/localsip/routingtest"
)

var mockdListen string

var mockdCmd = &cobra.Command{
	Use:   "mockd",
	Short: "Run a mock routing daemon",
	Long: `Run a minimal routing daemon that accepts local control
connections, assigns client identifiers and logs every decoded command.
Intended for integration testing of client endpoints.`,
	RunE: runMockd,
}

func init() {
	mockdCmd.Flags().StringVarP(&mockdListen, "listen", "l", "127.0.0.1:30499", "Listen address")
	rootCmd.AddCommand(mockdCmd)
}

func runMockd(cmd *cobra.Command, args []string) error {
	log := logging.NewConsole(logLevel)

	d, err := routingtest.Run(mockdListen, log)
	if err != nil {
		return err
	}
	log.Infof("mockd: listening on %s", d.Addr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case c := <-d.Commands:
			log.Infof("mockd: %s from client 0x%04X", c.ID(), c.Sender())
		case <-sig:
			log.Infof("mockd: shutting down")
			d.Shutdown()
			return nil
		}
	}
}
