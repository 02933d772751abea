package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/managemate/mmrt/pkg/client"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Connect to a gateway and print events as they arrive",
	Long: `Connect to a gateway, join rooms and print every event as one JSON line.
Rooms are re-joined automatically after a reconnect.

Examples:
  mmrt watch --room user:u1 --room chat:M1
  mmrt watch --url wss://rt.example.com/ws --token $TOKEN --room user:u1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")
		token, _ := cmd.Flags().GetString("token")
		rooms, _ := cmd.Flags().GetStringSlice("room")
		level, _ := cmd.Flags().GetString("log-level")

		cfg := log.Config{Level: log.WarnLevel, Output: os.Stderr}
		if level != "" {
			cfg.Level = log.ParseLevel(level)
		}
		log.Init(cfg)

		c := client.New(client.Config{URL: url, Token: token})
		if err := c.Subscribe(rooms...); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() { _ = c.Run(ctx) }()

		for evt := range c.Events() {
			fmt.Printf("{\"event\":%q,\"payload\":%s}\n", evt.Name, payloadOrNull(evt.Payload))
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().String("url", "ws://localhost:8080/ws", "Gateway WebSocket URL")
	watchCmd.Flags().String("token", "", "Bearer token")
	watchCmd.Flags().StringSlice("room", nil, "Room to join (repeatable)")

	rootCmd.AddCommand(watchCmd)
}

func payloadOrNull(p []byte) string {
	if len(p) == 0 {
		return "null"
	}
	return string(p)
}
