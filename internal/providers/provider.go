// Package providers holds the medium transports the gateways deliver
// through. Every transport validates its settings and the message's
// required fields immediately before a send and never retries.
package providers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"alert-router/internal/models"
)

// ErrMissingField marks a delivery aborted because a required setting or
// message field was empty.
var ErrMissingField = errors.New("required field is missing")

var headlines = map[models.NotificationType]string{
	models.NotificationProblem:         "PROBLEM: ",
	models.NotificationRecovery:        "RECOVERY: ",
	models.NotificationAcknowledgement: "ACK: ",
	models.NotificationTest:            "TEST NOTIFICATION: ",
}

// Headline returns the prefix for a notification type; unknown types get none.
func Headline(t models.NotificationType) string {
	return headlines[t]
}

// shortTimeLayout renders like "2 Jan 15:04".
const shortTimeLayout = "2 Jan 15:04"

// Subject is the one-line description: "PROBLEM: 'HTTP' on web01 is CRITICAL".
// The state is left out for acknowledgements and tests.
func Subject(msg *models.Message) string {
	var sb strings.Builder
	sb.WriteString(Headline(msg.NotificationType))
	fmt.Fprintf(&sb, "'%s' on %s", msg.Check(), msg.Entity())
	if msg.NotificationType != models.NotificationAcknowledgement && msg.NotificationType != models.NotificationTest {
		sb.WriteString(" is ")
		sb.WriteString(strings.ToUpper(string(msg.State)))
	}
	return sb.String()
}

// ShortText is the single-line body used by the text media.
func ShortText(msg *models.Message, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("%s at %s, %s", Subject(msg), msg.EventTime().In(loc).Format(shortTimeLayout), msg.Summary)
}

type field struct {
	value string
	name  string
}

// require reports every empty field in one error wrapping ErrMissingField.
func require(fields ...field) error {
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
}
