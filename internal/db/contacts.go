package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"alert-router/internal/models"
)

// TargetsForCheck returns one target per (contact, medium) linked to the check.
func (d *DB) TargetsForCheck(ctx context.Context, checkID string) ([]models.Target, error) {
	query := `
        SELECT c.id, c.first_name, c.last_name, m.medium, m.address, m.interval_seconds
        FROM check_contacts cc
        JOIN contacts c ON c.id = cc.contact_id
        JOIN contact_media m ON m.contact_id = c.id
        WHERE cc.check_id = $1
        ORDER BY c.id, m.medium`
	rows, err := d.Pool.Query(ctx, query, checkID)
	if err != nil {
		return nil, fmt.Errorf("failed to get targets for check %s: %w", checkID, err)
	}
	defer rows.Close()

	contacts := map[string]*models.Contact{}
	var targets []models.Target
	for rows.Next() {
		var (
			c        models.Contact
			medium   string
			address  string
			interval int32
		)
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &medium, &address, &interval); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		contact, ok := contacts[c.ID]
		if !ok {
			contact = &c
			contacts[c.ID] = contact
		}
		targets = append(targets, models.Target{
			Contact:  contact,
			Medium:   models.Medium(medium),
			Address:  address,
			Interval: time.Duration(interval) * time.Second,
		})
	}
	return targets, rows.Err()
}

// LastSentTo returns when state was last sent to the contact on medium for
// the check, or nil if never.
func (d *DB) LastSentTo(ctx context.Context, checkID, contactID string, medium models.Medium, state models.State) (*time.Time, error) {
	var last pgtype.Timestamptz
	query := `
        SELECT MAX(sent_at) FROM notifications
        WHERE check_id = $1 AND contact_id = $2 AND medium = $3 AND state = $4`
	if err := d.Pool.QueryRow(ctx, query, checkID, contactID, string(medium), string(state)).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to get last notification for %s/%s: %w", checkID, contactID, err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

// RecordSent stores a published message in the notification history.
func (d *DB) RecordSent(ctx context.Context, checkID string, msg *models.Message, at time.Time) error {
	query := `
        INSERT INTO notifications (id, check_id, contact_id, medium, address, notification_type, state, sent_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO NOTHING`
	_, err := d.Pool.Exec(ctx, query,
		msg.ID, checkID, msg.ContactID, string(msg.Medium), msg.Address,
		string(msg.NotificationType), string(msg.State), at)
	if err != nil {
		return fmt.Errorf("failed to record notification %s: %w", msg.ID, err)
	}
	return nil
}

// RecentNotifications lists the latest sent messages for a check.
func (d *DB) RecentNotifications(ctx context.Context, checkID string, limit int) ([]SentNotification, error) {
	query := `
        SELECT id, contact_id, medium, address, notification_type, state, sent_at
        FROM notifications
        WHERE check_id = $1
        ORDER BY sent_at DESC
        LIMIT $2`
	rows, err := d.Pool.Query(ctx, query, checkID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications for check %s: %w", checkID, err)
	}
	defer rows.Close()

	var out []SentNotification
	for rows.Next() {
		var n SentNotification
		var medium, notifType, state string
		if err := rows.Scan(&n.ID, &n.ContactID, &medium, &n.Address, &notifType, &state, &n.SentAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.Medium = models.Medium(medium)
		n.NotificationType = models.NotificationType(notifType)
		n.State = models.State(state)
		out = append(out, n)
	}
	return out, rows.Err()
}

// SentNotification is one row of notification history.
type SentNotification struct {
	ID               string                  `json:"id"`
	ContactID        string                  `json:"contact_id"`
	Medium           models.Medium           `json:"medium"`
	Address          string                  `json:"address"`
	NotificationType models.NotificationType `json:"notification_type"`
	State            models.State            `json:"state"`
	SentAt           time.Time               `json:"sent_at"`
}
