package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
	"alert-router/pkg/email"
)

type EmailConfig struct {
	SMTPServer  string
	SMTPPort    int
	Username    string
	Password    string
	FromName    string
	FromAddress string
	Location    *time.Location
}

// Email delivers notifications over SMTP.
type Email struct {
	config EmailConfig
	sender email.Sender
	logger *logrus.Entry
}

func NewEmail(config EmailConfig, logger *logrus.Entry) *Email {
	if config.FromAddress == "" {
		config.FromAddress = config.Username
	}
	return &Email{
		config: config,
		sender: email.SMTPSender{
			Server:   config.SMTPServer,
			Port:     config.SMTPPort,
			Username: config.Username,
			Password: config.Password,
		},
		logger: logger.WithField("transport", "email"),
	}
}

func (e *Email) Medium() models.Medium { return models.MediumEmail }

func (e *Email) Deliver(_ context.Context, msg *models.Message) error {
	if err := require(
		field{e.config.SMTPServer, "smtp server"},
		field{e.config.Username, "smtp username"},
		field{e.config.Password, "smtp password"},
		field{msg.Address, "email address"},
		field{msg.ID, "message id"},
	); err != nil {
		return err
	}
	if e.config.SMTPPort == 0 {
		return fmt.Errorf("%w: smtp port", ErrMissingField)
	}
	if !email.ValidAddress(msg.Address) {
		return fmt.Errorf("invalid email address: %s", msg.Address)
	}

	from := e.config.FromAddress
	if e.config.FromName != "" {
		from = fmt.Sprintf("%s <%s>", e.config.FromName, e.config.FromAddress)
	}
	mail := email.Message{
		From:    from,
		To:      msg.Address,
		Subject: Subject(msg),
		Body:    e.body(msg),
	}
	if err := e.sender.Send(e.config.FromAddress, []string{msg.Address}, mail.Bytes()); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", msg.Address, err)
	}
	e.logger.WithField("message_id", msg.ID).Info("sent email")
	return nil
}

func (e *Email) body(msg *models.Message) string {
	loc := e.config.Location
	if loc == nil {
		loc = time.Local
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hi %s,\n\n", strings.TrimSpace(msg.ContactFirstName))
	fmt.Fprintf(&sb, "Check:   %s\n", msg.Check())
	fmt.Fprintf(&sb, "Entity:  %s\n", msg.Entity())
	fmt.Fprintf(&sb, "State:   %s\n", strings.ToUpper(string(msg.State)))
	fmt.Fprintf(&sb, "Time:    %s\n", msg.EventTime().In(loc).Format(time.RFC1123))
	fmt.Fprintf(&sb, "Summary: %s\n", msg.Summary)
	if msg.Duration != nil {
		fmt.Fprintf(&sb, "Acknowledged for: %s\n", time.Duration(*msg.Duration)*time.Second)
	}
	fmt.Fprintf(&sb, "\nMessage ID: %s\n", msg.ID)
	return sb.String()
}
