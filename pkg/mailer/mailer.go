//go:generate go run go.uber.org/mock/mockgen -source=mailer.go -destination=../../mocks/mock_mailer.go -package=mocks

package mailer

import (
	"context"
	"errors"
)

// ErrNoRecipient is returned when a message has no address
var ErrNoRecipient = errors.New("message has no recipient")

// Message is a plain-text email
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string
}

// Mailer delivers email
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}
