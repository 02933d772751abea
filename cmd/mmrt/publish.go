package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/managemate/mmrt/pkg/bus"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/spf13/cobra"
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish events from a YAML file to the message bus",
	Long: `Publish events to the broker, as an application server would.
Each document's kind selects the channel: Notification, ChatMessage or
Conflict. The spec field holds the event payload.

Examples:
  # event.yaml
  kind: ChatMessage
  spec:
    moduleId: M1
    senderId: u1
    text: Standup moved to 10:30

  mmrt publish -f event.yaml`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringP("file", "f", "", "YAML file with events (required)")
	_ = publishCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	filename, _ := cmd.Flags().GetString("file")

	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	defer f.Close()

	resources, err := decodeResources(f)
	if err != nil {
		return err
	}

	evts := make([]events.Event, 0, len(resources))
	for _, r := range resources {
		evt, err := eventFromResource(r)
		if err != nil {
			return err
		}
		evts = append(evts, evt)
	}

	rdb, err := bus.NewRedisClient(cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	pub := bus.NewPublisher(rdb)
	for _, evt := range evts {
		if err := publishEvent(ctx, pub, evt); err != nil {
			return err
		}
		fmt.Printf("✓ %s published to %s\n", evt.Name(), evt.Channel())
	}
	return nil
}

// eventFromResource validates a document as the typed event for its kind
func eventFromResource(r *Resource) (events.Event, error) {
	channel, ok := eventChannels[r.Kind]
	if !ok {
		return nil, fmt.Errorf("unsupported event kind: %s", r.Kind)
	}
	data, err := json.Marshal(r.Spec)
	if err != nil {
		return nil, fmt.Errorf("invalid %s spec: %w", r.Kind, err)
	}
	return events.Parse(channel, data)
}

func publishEvent(ctx context.Context, pub *bus.Publisher, evt events.Event) error {
	switch e := evt.(type) {
	case *events.NotificationEvent:
		return pub.PublishNotification(ctx, e)
	case *events.ChatMessageEvent:
		return pub.PublishChat(ctx, e)
	default:
		return pub.Publish(ctx, evt)
	}
}
