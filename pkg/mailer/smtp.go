package mailer

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/managemate/mmrt/pkg/log"
	"github.com/rs/zerolog"
	"github.com/wneessen/go-mail"
)

// SMTPConfig holds the outgoing mail server settings
type SMTPConfig struct {
	Host     string        `yaml:"host" env:"HOST"`
	Port     int           `yaml:"port" env:"PORT"`
	Username string        `yaml:"username" env:"USERNAME"`
	Password string        `yaml:"password" env:"PASSWORD"`
	From     string        `yaml:"from" env:"FROM"`
	TLS      bool          `yaml:"tls" env:"TLS"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Enabled reports whether enough is configured to send mail
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// Addr returns host:port of the relay, with the default submission port
func (c SMTPConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 587
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SMTPMailer sends mail through an SMTP relay
type SMTPMailer struct {
	client *mail.Client
	from   string
	log    zerolog.Logger
}

// NewSMTPMailer creates a mailer for cfg
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("smtp host and from address are required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPMailer{
		client: client,
		from:   cfg.From,
		log:    log.WithComponent("mailer"),
	}, nil
}

// Send delivers msg, dialing the relay for each call
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	em, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.client.DialAndSendWithContext(ctx, em); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", msg.To, err)
	}
	m.log.Debug().Str("to", msg.To).Str("subject", msg.Subject).Msg("Mail sent")
	return nil
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	if msg.To == "" {
		return nil, ErrNoRecipient
	}

	em := mail.NewMsg()
	if err := em.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid from address %q: %w", m.from, err)
	}
	if err := em.AddToFormat(msg.ToName, msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	em.Subject(msg.Subject)
	em.SetBodyString(mail.TypeTextPlain, msg.Text)
	return em, nil
}
