package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Publisher validates events and publishes them to their broker channel.
// It is used by the HTTP API and the background jobs.
type Publisher struct {
	client redis.Cmdable
	now    func() time.Time
	log    zerolog.Logger
}

// NewPublisher creates a publisher over client
func NewPublisher(client redis.Cmdable) *Publisher {
	return &Publisher{
		client: client,
		now:    time.Now,
		log:    log.WithComponent("publisher"),
	}
}

// Publish encodes evt and sends it to evt.Channel()
func (p *Publisher) Publish(ctx context.Context, evt events.Event) error {
	channel := string(evt.Channel())

	data, err := events.Encode(evt)
	if err != nil {
		metrics.PublishTotal.WithLabelValues(channel, "invalid").Inc()
		return err
	}

	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		metrics.PublishTotal.WithLabelValues(channel, "error").Inc()
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}

	metrics.PublishTotal.WithLabelValues(channel, "ok").Inc()
	p.log.Debug().
		Str("channel", channel).
		Str("event", evt.Name()).
		Int("bytes", len(data)).
		Msg("Published event")
	return nil
}

// PublishNotification publishes to the notifications channel, filling in
// the id and timestamp when unset.
func (p *Publisher) PublishNotification(ctx context.Context, evt *events.NotificationEvent) error {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = p.now().UTC()
	}
	return p.Publish(ctx, evt)
}

// PublishChat publishes to the chat channel
func (p *Publisher) PublishChat(ctx context.Context, evt *events.ChatMessageEvent) error {
	if evt.SentAt.IsZero() {
		evt.SentAt = p.now().UTC()
	}
	return p.Publish(ctx, evt)
}

// PublishConflict publishes to the conflicts channel
func (p *Publisher) PublishConflict(ctx context.Context, evt *events.ConflictEvent) error {
	return p.Publish(ctx, evt)
}
