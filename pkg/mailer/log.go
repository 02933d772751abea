package mailer

import (
	"context"

	"github.com/managemate/mmrt/pkg/log"
	"github.com/rs/zerolog"
)

// LogMailer writes messages to the log instead of sending them.
// Used when no SMTP relay is configured.
type LogMailer struct {
	log zerolog.Logger
}

// NewLogMailer creates a log-only mailer
func NewLogMailer() *LogMailer {
	return &LogMailer{log: log.WithComponent("mailer")}
}

func (m *LogMailer) Send(_ context.Context, msg Message) error {
	if msg.To == "" {
		return ErrNoRecipient
	}
	m.log.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("bytes", len(msg.Text)).
		Msg("SMTP not configured, mail logged only")
	return nil
}
