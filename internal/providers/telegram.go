package providers

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-telegram/bot"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"alert-router/internal/models"
)

type TelegramConfig struct {
	BotToken  string
	RateLimit int    // messages per second
	ServerURL string // overridable for testing
	Location  *time.Location
}

// Telegram sends notifications to a chat id through the Bot API.
type Telegram struct {
	config  TelegramConfig
	limiter *rate.Limiter
	logger  *logrus.Entry

	mu  sync.Mutex
	bot *bot.Bot
}

func NewTelegram(config TelegramConfig, logger *logrus.Entry) *Telegram {
	if config.RateLimit <= 0 {
		config.RateLimit = 25
	}
	return &Telegram{
		config:  config,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateLimit),
		logger:  logger.WithField("transport", "telegram"),
	}
}

func (t *Telegram) Medium() models.Medium { return models.MediumTelegram }

func (t *Telegram) client() (*bot.Bot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.bot != nil {
		return t.bot, nil
	}
	opts := []bot.Option{bot.WithSkipGetMe()}
	if t.config.ServerURL != "" {
		opts = append(opts, bot.WithServerURL(t.config.ServerURL))
	}
	b, err := bot.New(t.config.BotToken, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram bot: %w", err)
	}
	t.bot = b
	return b, nil
}

func (t *Telegram) Deliver(ctx context.Context, msg *models.Message) error {
	if err := require(
		field{t.config.BotToken, "telegram bot token"},
		field{msg.Address, "telegram chat id"},
		field{msg.ID, "message id"},
	); err != nil {
		return err
	}
	chatID, err := strconv.ParseInt(msg.Address, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid telegram chat id %q: %w", msg.Address, err)
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram rate limit: %w", err)
	}

	b, err := t.client()
	if err != nil {
		return err
	}
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   ShortText(msg, t.config.Location),
	}); err != nil {
		return fmt.Errorf("failed to send Telegram message to chat_id %d: %w", chatID, err)
	}
	t.logger.WithFields(logrus.Fields{
		"message_id": msg.ID,
		"chat_id":    chatID,
	}).Info("sent telegram message")
	return nil
}
