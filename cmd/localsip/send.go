package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ecukit/localsip/config"
	"github.com/ecukit/localsip/endpoint"
	"github.com/ecukit/localsip/logging"
	"github.com/ecukit/localsip/protocol"
)

var (
	sendConfig  string
	sendRemote  string
	sendClient  uint16
	sendService uint16
	sendInst    uint16
	sendGroup   uint16
	sendMajor   uint8
	sendEvent   uint16
)

var sendCmd = &cobra.Command{
	Use:   "send {assign|ping|suspend|subscribe|unsubscribe}",
	Short: "Send a control command to the routing daemon",
	Args:  cobra.ExactArgs(1),
	RunE:  runSend,
}

func init() {
	sendCmd.Flags().StringVarP(&sendConfig, "config", "c", "", "TOML configuration file")
	sendCmd.Flags().StringVarP(&sendRemote, "remote", "r", "", "Daemon address (overrides config)")
	sendCmd.Flags().Uint16Var(&sendClient, "client", 0, "Originating client id")
	sendCmd.Flags().Uint16Var(&sendService, "service", uint16(protocol.AnyService), "Service id")
	sendCmd.Flags().Uint16Var(&sendInst, "instance", uint16(protocol.AnyInstance), "Instance id")
	sendCmd.Flags().Uint16Var(&sendGroup, "eventgroup", 0, "Eventgroup id")
	sendCmd.Flags().Uint8Var(&sendMajor, "major", uint8(protocol.AnyMajor), "Major version")
	sendCmd.Flags().Uint16Var(&sendEvent, "event", uint16(protocol.AnyEvent), "Event id")
	rootCmd.AddCommand(sendCmd)
}

func buildCommand(kind string) (protocol.Command, error) {
	client := protocol.ClientID(sendClient)
	fields := protocol.SubscribeFields{
		Service:    protocol.ServiceID(sendService),
		Instance:   protocol.InstanceID(sendInst),
		Eventgroup: protocol.EventgroupID(sendGroup),
		Major:      protocol.MajorVersion(sendMajor),
		Event:      protocol.EventID(sendEvent),
	}
	switch kind {
	case "assign":
		return &protocol.AssignClient{Client: client, Name: "localsip-send"}, nil
	case "ping":
		return &protocol.HeaderOnly{Kind: protocol.IDPing, Client: client}, nil
	case "suspend":
		return protocol.NewSuspend(client), nil
	case "subscribe":
		return &protocol.Subscribe{Client: client, SubscribeFields: fields}, nil
	case "unsubscribe":
		return &protocol.Unsubscribe{Client: client, SubscribeFields: fields}, nil
	}
	return nil, fmt.Errorf("unknown command %q", kind)
}

func runSend(cmd *cobra.Command, args []string) error {
	log := logging.NewConsole(logLevel)

	var opts endpoint.Options
	if sendConfig != "" {
		cfg, err := config.Load(sendConfig)
		if err != nil {
			return err
		}
		opts = cfg.EndpointOptions()
	}
	if sendRemote != "" {
		opts.Remote = sendRemote
	}
	if opts.Remote == "" {
		return fmt.Errorf("need --remote or --config")
	}
	opts.Log = log

	c, err := buildCommand(args[0])
	if err != nil {
		return err
	}
	buf, err := protocol.Serialize(c)
	if err != nil {
		return err
	}

	ep := endpoint.NewClient(opts)
	ep.Start()
	defer ep.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for ep.State() != endpoint.Established {
		if time.Now().After(deadline) {
			return fmt.Errorf("could not connect to %s", opts.Remote)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !ep.Send(buf) {
		return fmt.Errorf("send refused")
	}
	log.Infof("send: %s queued to %s", c.ID(), opts.Remote)
	return nil
}
