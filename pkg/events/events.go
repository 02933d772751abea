package events

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Channel is a broker channel name
type Channel string

const (
	ChannelNotifications Channel = "notifications"
	ChannelChat          Channel = "chat"
	ChannelConflicts     Channel = "conflicts"
)

// Channels lists every channel the bridge subscribes to
var Channels = []Channel{ChannelNotifications, ChannelChat, ChannelConflicts}

// Wire event names sent to realtime clients
const (
	NameNotification = "notification"
	NameChatMessage  = "chat-message"
	NameTaskConflict = "task-conflict"
)

var (
	// ErrUnknownChannel is returned when decoding a message from an unexpected channel
	ErrUnknownChannel = errors.New("unknown channel")
	// ErrInvalidEvent is returned when a payload is not a valid event for its channel
	ErrInvalidEvent = errors.New("invalid event")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Event is a routable event: a Message from the broker, or one of
// NotificationEvent, ChatMessageEvent or ConflictEvent on the producer side
type Event interface {
	// Channel is the broker channel the event travels on
	Channel() Channel
	// Name is the event name delivered to clients
	Name() string
	// Room is the destination room, empty for a broadcast to every connection
	Room() string
	// Payload is the JSON object delivered to clients
	Payload() json.RawMessage
}

// NotificationEvent is a generic notification broadcast to every connection.
// Receiving clients filter by UserID themselves.
type NotificationEvent struct {
	ID        string    `json:"id,omitempty"`
	UserID    string    `json:"userId,omitempty"`
	Title     string    `json:"title,omitempty"`
	Message   string    `json:"message,omitempty"`
	Severity  string    `json:"severity,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`

	raw json.RawMessage
}

func (e *NotificationEvent) Channel() Channel         { return ChannelNotifications }
func (e *NotificationEvent) Name() string             { return NameNotification }
func (e *NotificationEvent) Room() string             { return "" }
func (e *NotificationEvent) Payload() json.RawMessage { return e.raw }

// ChatMessageEvent is a chat message scoped to a module
type ChatMessageEvent struct {
	ModuleID string    `json:"moduleId" validate:"required"`
	SenderID string    `json:"senderId,omitempty"`
	Text     string    `json:"text,omitempty"`
	SentAt   time.Time `json:"sentAt,omitzero"`

	raw json.RawMessage
}

func (e *ChatMessageEvent) Channel() Channel         { return ChannelChat }
func (e *ChatMessageEvent) Name() string             { return NameChatMessage }
func (e *ChatMessageEvent) Room() string             { return ChatRoom(e.ModuleID) }
func (e *ChatMessageEvent) Payload() json.RawMessage { return e.raw }

// ConflictEvent reports a change of a task's schedule conflict flag to one assignee
type ConflictEvent struct {
	UserID        string   `json:"userId" validate:"required"`
	TaskID        string   `json:"taskId" validate:"required"`
	Title         string   `json:"title,omitempty"`
	HasConflict   bool     `json:"hasConflict"`
	ConflictsWith []string `json:"conflictsWith,omitempty"`

	raw json.RawMessage
}

func (e *ConflictEvent) Channel() Channel         { return ChannelConflicts }
func (e *ConflictEvent) Name() string             { return NameTaskConflict }
func (e *ConflictEvent) Room() string             { return UserRoom(e.UserID) }
func (e *ConflictEvent) Payload() json.RawMessage { return e.raw }

// Message is a broker message as the bridge routes it: the destination
// derived from the routing fields and the payload exactly as published.
type Message struct {
	channel Channel
	room    string
	raw     json.RawMessage
}

func (m *Message) Channel() Channel         { return m.channel }
func (m *Message) Name() string             { return eventNames[m.channel] }
func (m *Message) Room() string             { return m.room }
func (m *Message) Payload() json.RawMessage { return m.raw }

var eventNames = map[Channel]string{
	ChannelNotifications: NameNotification,
	ChannelChat:          NameChatMessage,
	ChannelConflicts:     NameTaskConflict,
}

// chatRoute and conflictRoute hold only the fields that pick a room.
// Every other field is passed through untouched.
type chatRoute struct {
	ModuleID string `json:"moduleId" validate:"required"`
}

type conflictRoute struct {
	UserID string `json:"userId" validate:"required"`
	TaskID string `json:"taskId" validate:"required"`
}

// Decode routes a raw broker message. Only the payload's routing fields are
// checked: moduleId on chat, userId and taskId on conflicts, nothing but
// being a JSON object on notifications. The bytes are kept as published.
func Decode(channel Channel, raw []byte) (Event, error) {
	trimmed, err := object(channel, raw)
	if err != nil {
		return nil, err
	}

	var room string
	switch channel {
	case ChannelNotifications:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &fields); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
		}
	case ChannelChat:
		var r chatRoute
		if err := unmarshalValid(trimmed, &r); err != nil {
			return nil, err
		}
		room = ChatRoom(r.ModuleID)
	case ChannelConflicts:
		var r conflictRoute
		if err := unmarshalValid(trimmed, &r); err != nil {
			return nil, err
		}
		room = UserRoom(r.UserID)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	return &Message{
		channel: channel,
		room:    room,
		raw:     json.RawMessage(append([]byte(nil), trimmed...)),
	}, nil
}

// Parse decodes raw into the typed event for its channel and applies every
// field rule, the same checks Encode applies before publishing.
func Parse(channel Channel, raw []byte) (Event, error) {
	trimmed, err := object(channel, raw)
	if err != nil {
		return nil, err
	}

	var evt Event
	switch channel {
	case ChannelNotifications:
		evt = &NotificationEvent{}
	case ChannelChat:
		evt = &ChatMessageEvent{}
	case ChannelConflicts:
		evt = &ConflictEvent{}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownChannel, channel)
	}

	if err := unmarshalValid(trimmed, evt); err != nil {
		return nil, err
	}
	setRaw(evt, json.RawMessage(append([]byte(nil), trimmed...)))
	return evt, nil
}

func object(channel Channel, raw []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, fmt.Errorf("%w: payload on %s is not a JSON object", ErrInvalidEvent, channel)
	}
	return trimmed, nil
}

func unmarshalValid(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	return nil
}

// Encode validates a typed event and returns the bytes to publish.
// The encoded form becomes the event's payload.
func Encode(evt Event) ([]byte, error) {
	if err := validate.Struct(evt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", evt.Channel(), err)
	}
	setRaw(evt, data)
	return data, nil
}

func setRaw(evt Event, raw json.RawMessage) {
	switch e := evt.(type) {
	case *NotificationEvent:
		e.raw = raw
	case *ChatMessageEvent:
		e.raw = raw
	case *ConflictEvent:
		e.raw = raw
	}
}
