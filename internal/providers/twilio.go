package providers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
	"alert-router/pkg/sms"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	Location   *time.Location
}

// Twilio sends SMS through Twilio. It is the alternative to Messagenet for
// the sms medium.
type Twilio struct {
	config     TwilioConfig
	httpClient *http.Client
	logger     *logrus.Entry
}

func NewTwilio(config TwilioConfig, logger *logrus.Entry) *Twilio {
	return &Twilio{
		config:     config,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.WithField("transport", "twilio"),
	}
}

func (t *Twilio) Medium() models.Medium { return models.MediumSMS }

func (t *Twilio) Deliver(_ context.Context, msg *models.Message) error {
	text := ShortText(msg, t.config.Location)
	if err := require(
		field{t.config.AccountSID, "twilio account sid"},
		field{t.config.AuthToken, "twilio auth token"},
		field{t.config.FromNumber, "twilio from number"},
		field{msg.Address, "sms address"},
		field{msg.ID, "message id"},
	); err != nil {
		return err
	}

	client := sms.New(t.config.AccountSID, t.config.AuthToken, t.config.FromNumber, t.httpClient)
	sid, err := client.Send(msg.Address, text)
	if err != nil {
		return err
	}
	t.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"twilio_sid": sid,
	}).Info("sent sms via twilio")
	return nil
}
