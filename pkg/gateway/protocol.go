package gateway

import (
	"bytes"
	"encoding/json"

	"github.com/managemate/mmrt/pkg/metrics"
)

// Control message types sent by clients
const (
	ControlSubscribe   = "subscribe"
	ControlUnsubscribe = "unsubscribe"
	ControlPing        = "ping"
)

// EventPong answers a client ping
const EventPong = "pong"

// ControlMessage is an inbound client frame
type ControlMessage struct {
	Type  string          `json:"type"`
	Rooms json.RawMessage `json:"rooms,omitempty"`
}

// HandleControl applies one inbound frame from c. Malformed frames are
// ignored without answering the client.
func (h *Hub) HandleControl(c *Client, raw []byte) {
	var msg ControlMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		metrics.GatewayControlMessages.WithLabelValues("invalid", "ignored").Inc()
		h.log.Debug().Err(err).Str("conn_id", c.id).Msg("ignoring malformed control message")
		return
	}

	switch msg.Type {
	case ControlSubscribe, ControlUnsubscribe:
		rooms, ok := roomNames(msg.Rooms)
		if !ok {
			metrics.GatewayControlMessages.WithLabelValues(msg.Type, "ignored").Inc()
			h.log.Debug().Str("conn_id", c.id).Str("type", msg.Type).Msg("rooms is not an array")
			return
		}

		var changed []string
		if msg.Type == ControlSubscribe {
			changed = h.Subscribe(c, rooms)
		} else {
			changed = h.Unsubscribe(c, rooms)
		}
		metrics.GatewayControlMessages.WithLabelValues(msg.Type, "ok").Inc()
		h.log.Debug().
			Str("conn_id", c.id).
			Str("type", msg.Type).
			Strs("rooms", changed).
			Msg("membership changed")

	case ControlPing:
		h.sendTo(c, EventPong, nil)
		metrics.GatewayControlMessages.WithLabelValues(msg.Type, "ok").Inc()

	default:
		metrics.GatewayControlMessages.WithLabelValues("unknown", "ignored").Inc()
		h.log.Debug().Str("conn_id", c.id).Str("type", msg.Type).Msg("ignoring unknown control message")
	}
}

// roomNames returns the string elements of a JSON array. Non-string
// elements are dropped; ok is false when list is not an array.
func roomNames(list json.RawMessage) ([]string, bool) {
	list = bytes.TrimSpace(list)
	if len(list) == 0 || list[0] != '[' {
		return nil, false
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(list, &elems); err != nil {
		return nil, false
	}

	rooms := make([]string, 0, len(elems))
	for _, elem := range elems {
		var room string
		if len(elem) == 0 || elem[0] != '"' || json.Unmarshal(elem, &room) != nil {
			continue
		}
		rooms = append(rooms, room)
	}
	return rooms, true
}
