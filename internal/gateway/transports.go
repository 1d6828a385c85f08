package gateway

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"alert-router/internal/config"
	"alert-router/internal/providers"
)

// TransportsFromConfig builds a registry with one transport per medium. The
// sms medium uses the provider named by SMS_PROVIDER. sockets may be nil,
// in which case the web medium is unavailable.
func TransportsFromConfig(cfg config.Config, sockets *providers.WebSocketManager, logger *logrus.Entry) (*Registry, error) {
	loc := time.Local
	if tz := cfg.Messagenet.TimeZone; tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid time zone %q: %w", tz, err)
		}
		loc = l
	}

	var sms Transport
	switch cfg.SMS.Provider {
	case "twilio":
		sms = providers.NewTwilio(providers.TwilioConfig{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			FromNumber: cfg.Twilio.FromNumber,
			Location:   loc,
		}, logger)
	case "", "messagenet":
		sms = providers.NewMessagenet(providers.MessagenetConfig{
			Username: cfg.Messagenet.Username,
			Password: cfg.Messagenet.Password,
			BaseURL:  cfg.Messagenet.BaseURL,
			Location: loc,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown sms provider %q", cfg.SMS.Provider)
	}

	transports := []Transport{
		sms,
		providers.NewEmail(providers.EmailConfig{
			SMTPServer:  cfg.Email.SMTPServer,
			SMTPPort:    cfg.Email.SMTPPort,
			Username:    cfg.Email.Username,
			Password:    cfg.Email.Password,
			FromName:    cfg.Email.FromName,
			FromAddress: cfg.Email.FromAddress,
			Location:    loc,
		}, logger),
		providers.NewTelegram(providers.TelegramConfig{
			BotToken:  cfg.Telegram.BotToken,
			RateLimit: cfg.Telegram.RateLimit,
			ServerURL: cfg.Telegram.ServerURL,
			Location:  loc,
		}, logger),
	}
	if sockets != nil {
		transports = append(transports, providers.NewWeb(sockets, logger))
	}
	return NewRegistry(transports...), nil
}
