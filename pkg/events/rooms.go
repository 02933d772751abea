package events

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// Room prefixes
const (
	ChatRoomPrefix = "chat:"
	UserRoomPrefix = "user:"
)

// ErrInvalidRoom is returned for room names outside the chat:/user: scheme
var ErrInvalidRoom = errors.New("invalid room name")

// ChatRoom returns the room carrying chat messages for a module
func ChatRoom(moduleID string) string {
	return ChatRoomPrefix + moduleID
}

// UserRoom returns the room carrying conflict notifications for a user
func UserRoom(userID string) string {
	return UserRoomPrefix + userID
}

// ValidateRoom checks a room name is chat:{id} or user:{id} with a single
// segment id: no separators, whitespace or control characters
func ValidateRoom(name string) error {
	var id string
	switch {
	case strings.HasPrefix(name, ChatRoomPrefix):
		id = strings.TrimPrefix(name, ChatRoomPrefix)
	case strings.HasPrefix(name, UserRoomPrefix):
		id = strings.TrimPrefix(name, UserRoomPrefix)
	default:
		return fmt.Errorf("%w: %q", ErrInvalidRoom, name)
	}
	if id == "" || strings.ContainsFunc(id, badIDRune) {
		return fmt.Errorf("%w: %q", ErrInvalidRoom, name)
	}
	return nil
}

func badIDRune(r rune) bool {
	return r == ':' || unicode.IsSpace(r) || unicode.IsControl(r)
}
