// Package notifier turns an event that passed the filter chain into one
// message per delivery target.
package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

// Directory resolves who should hear about a check.
type Directory interface {
	TargetsForCheck(ctx context.Context, checkID string) ([]models.Target, error)
}

// History answers when a contact was last sent a given state on a medium.
// A nil time means never.
type History interface {
	LastSentTo(ctx context.Context, checkID, contactID string, medium models.Medium, state models.State) (*time.Time, error)
}

// NotificationTypeFor classifies an event.
func NotificationTypeFor(event *models.Event) models.NotificationType {
	switch {
	case event.State == models.StateTest:
		return models.NotificationTest
	case event.State == models.StateAcknowledgement:
		return models.NotificationAcknowledgement
	case event.State == models.StateOK:
		return models.NotificationRecovery
	default:
		return models.NotificationProblem
	}
}

type Builder struct {
	directory Directory
	history   History
	logger    *logrus.Entry
	clock     func() time.Time
}

// NewBuilder returns a builder. history may be nil, which disables
// per-target intervals.
func NewBuilder(directory Directory, history History, logger *logrus.Entry) *Builder {
	return &Builder{
		directory: directory,
		history:   history,
		logger:    logger.WithField("component", "notifier"),
		clock:     time.Now,
	}
}

// Build resolves targets for the event's check and returns one message per
// target still due a notification.
func (b *Builder) Build(ctx context.Context, event *models.Event, check *models.Check) ([]*models.Message, error) {
	targets, err := b.directory.TargetsForCheck(ctx, check.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve targets for %s: %w", check.ID, err)
	}

	notifType := NotificationTypeFor(event)
	messages := make([]*models.Message, 0, len(targets))
	for _, target := range targets {
		if target.Address == "" {
			b.logger.WithFields(logrus.Fields{
				"check":  check.ID,
				"medium": target.Medium,
			}).Warn("target has no address, skipping")
			continue
		}
		due, err := b.due(ctx, check.ID, target, event, notifType)
		if err != nil {
			return nil, err
		}
		if !due {
			continue
		}
		messages = append(messages, models.NewMessage(target, event, notifType))
	}
	return messages, nil
}

// due applies the target's interval: a problem in the same state is not
// re-sent to the same contact and medium until the interval has passed.
func (b *Builder) due(ctx context.Context, checkID string, target models.Target, event *models.Event, notifType models.NotificationType) (bool, error) {
	if b.history == nil || target.Interval <= 0 || notifType != models.NotificationProblem || target.Contact == nil {
		return true, nil
	}
	last, err := b.history.LastSentTo(ctx, checkID, target.Contact.ID, target.Medium, event.State)
	if err != nil {
		return false, fmt.Errorf("notification history for %s: %w", checkID, err)
	}
	if last == nil {
		return true, nil
	}
	if since := b.clock().Sub(*last); since < target.Interval {
		b.logger.WithFields(logrus.Fields{
			"check":    checkID,
			"contact":  target.Contact.ID,
			"medium":   target.Medium,
			"since":    since.String(),
			"interval": target.Interval.String(),
		}).Debug("target interval not elapsed, skipping")
		return false, nil
	}
	return true, nil
}
