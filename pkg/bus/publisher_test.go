package bus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/managemate/mmrt/pkg/events"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func subscribeRaw(t *testing.T, client *redis.Client, channel string) <-chan *redis.Message {
	t.Helper()
	ps := client.Subscribe(context.Background(), channel)
	_, err := ps.Receive(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ps.Close() })
	return ps.Channel()
}

func receiveOne(t *testing.T, ch <-chan *redis.Message) *redis.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message published")
		return nil
	}
}

func TestPublishNotificationFillsDefaults(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	msgs := subscribeRaw(t, client, "notifications")

	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	pub := NewPublisher(client)
	pub.now = func() time.Time { return fixed }

	evt := &events.NotificationEvent{Title: "Deadline", Message: "Task due", Severity: "critical"}
	require.NoError(t, pub.PublishNotification(context.Background(), evt))

	msg := receiveOne(t, msgs)
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	assert.NotEmpty(t, got["id"])
	assert.Equal(t, evt.ID, got["id"])
	assert.Equal(t, "2026-03-01T12:00:00Z", got["createdAt"])
	assert.Equal(t, "critical", got["severity"])
}

func TestPublishChat(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	msgs := subscribeRaw(t, client, "chat")

	pub := NewPublisher(client)
	require.NoError(t, pub.PublishChat(context.Background(), &events.ChatMessageEvent{ModuleID: "M7", SenderID: "u1", Text: "hey"}))

	msg := receiveOne(t, msgs)
	assert.Equal(t, "chat", msg.Channel)
	assert.Contains(t, msg.Payload, `"moduleId":"M7"`)
}

func TestPublishRejectsInvalidEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	pub := NewPublisher(client)
	err := pub.PublishConflict(context.Background(), &events.ConflictEvent{TaskID: "t1"})
	assert.ErrorIs(t, err, events.ErrInvalidEvent)

	err = pub.PublishChat(context.Background(), &events.ChatMessageEvent{Text: "no module"})
	assert.ErrorIs(t, err, events.ErrInvalidEvent)
}

func TestPublishBrokerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer client.Close()
	mr.Close()

	pub := NewPublisher(client)
	err := pub.PublishConflict(context.Background(), &events.ConflictEvent{UserID: "u1", TaskID: "t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "conflicts")
}
