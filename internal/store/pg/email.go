package pg

import (
	"context"
	"time"

	"tradeboard.org/internal/ids"
)

// Email notification statuses tracked from delivery webhooks.
const (
	EmailStatusSent      = "sent"
	EmailStatusDelivered = "delivered"
	EmailStatusOpened    = "opened"
	EmailStatusFailed    = "failed"
)

// UpsertEmailStatus records the latest delivery status for an outbound email
// keyed by the mail provider's email id. Webhooks can arrive before the
// application records the send, so a missing row is created.
func (s *Store) UpsertEmailStatus(ctx context.Context, emailID, recipient, subject, status string) error {
	_, err := s.db.ExecContext(ctx, `
		insert into email_notifications (id, email_id, recipient, subject, status, updated_at)
		values ($1, $2, $3, $4, $5, now())
		on conflict (email_id) do update
		set status = excluded.status,
		    recipient = coalesce(nullif(excluded.recipient, ''), email_notifications.recipient),
		    subject = coalesce(nullif(excluded.subject, ''), email_notifications.subject),
		    updated_at = now()
	`, ids.New(), emailID, recipient, subject, status)
	return err
}

// MarkEmailOpened sets the opened status along with the open timestamp.
func (s *Store) MarkEmailOpened(ctx context.Context, emailID string, openedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		insert into email_notifications (id, email_id, status, opened_at, updated_at)
		values ($1, $2, $3, $4, now())
		on conflict (email_id) do update
		set status = excluded.status,
		    opened_at = excluded.opened_at,
		    updated_at = now()
	`, ids.New(), emailID, EmailStatusOpened, openedAt.UTC())
	return err
}
