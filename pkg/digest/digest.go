package digest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/managemate/mmrt/pkg/jobs"
	"github.com/managemate/mmrt/pkg/log"
	"github.com/managemate/mmrt/pkg/mailer"
	"github.com/managemate/mmrt/pkg/metrics"
	"github.com/managemate/mmrt/pkg/types"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	// DefaultInterval is how often pending critical notifications are mailed
	DefaultInterval = time.Hour
	// JobName labels the digest's logs and metrics
	JobName = "critical-digest"
)

// Store is the part of the store the digest reads and writes
type Store interface {
	ListPendingCritical() ([]*types.Notification, error)
	MarkNotificationsEmailed(ids []string, at time.Time) error
	GetUser(id string) (*types.User, error)
}

// Result summarizes one digest run
type Result struct {
	Pending int `json:"pending"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Digest mails each user one summary of their unread high and critical
// notifications and marks them emailed so they are sent once.
type Digest struct {
	store  Store
	mailer mailer.Mailer
	now    func() time.Time
	log    zerolog.Logger
}

// New creates a digest
func New(store Store, m mailer.Mailer) *Digest {
	return &Digest{
		store:  store,
		mailer: m,
		now:    time.Now,
		log:    log.WithComponent("digest"),
	}
}

// Job wraps the digest in a periodic runner
func (d *Digest) Job(interval time.Duration) (*jobs.Runner, error) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return jobs.NewRunner(jobs.Config{
		Name:     JobName,
		Interval: interval,
		Timeout:  interval,
	}, func(ctx context.Context) error {
		_, err := d.Run(ctx)
		return err
	})
}

// Run sends one pass of digests. Failures for one user do not stop the others.
func (d *Digest) Run(ctx context.Context) (Result, error) {
	var res Result

	pending, err := d.store.ListPendingCritical()
	if err != nil {
		return res, fmt.Errorf("failed to list pending notifications: %w", err)
	}
	res.Pending = len(pending)
	if len(pending) == 0 {
		return res, nil
	}

	byUser := lo.GroupBy(pending, func(n *types.Notification) string { return n.UserID })
	userIDs := lo.Keys(byUser)
	slices.Sort(userIDs)

	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		d.sendUser(ctx, userID, byUser[userID], &res)
	}

	d.log.Info().
		Int("pending", res.Pending).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Int("errors", res.Errors).
		Msg("Digest run complete")
	return res, nil
}

func (d *Digest) sendUser(ctx context.Context, userID string, notes []*types.Notification, res *Result) {
	logger := d.log.With().Str("user_id", userID).Int("notifications", len(notes)).Logger()

	user, err := d.store.GetUser(userID)
	switch {
	case errors.Is(err, types.ErrNotFound):
		res.Skipped++
		metrics.DigestEmails.WithLabelValues("skipped").Inc()
		logger.Debug().Msg("Skipping digest for unknown user")
		return
	case err != nil:
		res.Errors++
		metrics.DigestEmails.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("Failed to load digest recipient")
		return
	case user.Email == "":
		res.Skipped++
		metrics.DigestEmails.WithLabelValues("skipped").Inc()
		logger.Debug().Msg("Skipping digest for user without email")
		return
	}

	if err := d.mailer.Send(ctx, compose(user, notes)); err != nil {
		res.Errors++
		metrics.DigestEmails.WithLabelValues("error").Inc()
		logger.Error().Err(err).Msg("Failed to send digest")
		return
	}

	ids := lo.Map(notes, func(n *types.Notification, _ int) string { return n.ID })
	if err := d.store.MarkNotificationsEmailed(ids, d.now().UTC()); err != nil {
		// the mail went out; the next run will repeat it
		res.Errors++
		logger.Error().Err(err).Msg("Failed to mark notifications emailed")
		return
	}

	res.Sent++
	metrics.DigestEmails.WithLabelValues("sent").Inc()
	logger.Debug().Msg("Digest sent")
}

func compose(user *types.User, notes []*types.Notification) mailer.Message {
	slices.SortFunc(notes, func(a, b *types.Notification) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	subject := "You have 1 critical notification"
	if len(notes) > 1 {
		subject = fmt.Sprintf("You have %d critical notifications", len(notes))
	}

	var b strings.Builder
	name := user.Name
	if name == "" {
		name = "there"
	}
	fmt.Fprintf(&b, "Hi %s,\n\nThe following need your attention:\n\n", name)
	for _, n := range notes {
		fmt.Fprintf(&b, "- [%s] %s", strings.ToUpper(string(n.Severity)), n.Title)
		if n.Message != "" {
			fmt.Fprintf(&b, ": %s", n.Message)
		}
		if n.Link != "" {
			fmt.Fprintf(&b, " (%s)", n.Link)
		}
		b.WriteString("\n")
	}

	return mailer.Message{
		To:      user.Email,
		ToName:  user.Name,
		Subject: subject,
		Text:    b.String(),
	}
}
