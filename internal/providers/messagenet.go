package providers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/models"
)

const (
	DefaultMessagenetURL = "https://www.messagenet.com.au"
	messagenetPath       = "/dotnet/Lodge.asmx/LodgeSMSMessage"
)

// MessagenetConfig holds the account used to lodge SMS messages.
type MessagenetConfig struct {
	Username string
	Password string
	BaseURL  string // overridable for testing
	Location *time.Location
}

// Messagenet sends SMS through the Messagenet HTTP API.
type Messagenet struct {
	config MessagenetConfig
	client *http.Client
	logger *logrus.Entry
}

func NewMessagenet(config MessagenetConfig, logger *logrus.Entry) *Messagenet {
	if config.BaseURL == "" {
		config.BaseURL = DefaultMessagenetURL
	}
	return &Messagenet{
		config: config,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.WithField("transport", "messagenet"),
	}
}

func (m *Messagenet) Medium() models.Medium { return models.MediumSMS }

func (m *Messagenet) Deliver(ctx context.Context, msg *models.Message) error {
	text := ShortText(msg, m.config.Location)
	m.logger.WithField("message_id", msg.ID).Debugf("sending sms: %s", text)

	if err := require(
		field{m.config.Username, "messagenet username"},
		field{m.config.Password, "messagenet password"},
		field{msg.Address, "sms address"},
		field{text, "sms message"},
		field{msg.ID, "message id"},
	); err != nil {
		return err
	}

	query := url.Values{}
	query.Set("Username", m.config.Username)
	query.Set("Pwd", m.config.Password)
	query.Set("PhoneNumber", msg.Address)
	query.Set("PhoneMessage", text)
	endpoint := strings.TrimRight(m.config.BaseURL, "/") + messagenetPath + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build messagenet request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("messagenet request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 206 {
		return fmt.Errorf("messagenet returned status %d", resp.StatusCode)
	}
	m.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"status":     resp.StatusCode,
	}).Info("sent sms via messagenet")
	return nil
}
