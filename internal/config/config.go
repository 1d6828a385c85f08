package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"alert-router/internal/models"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	DB struct {
		DSN            string
		MigrationsPath string
		ConnectRetries int
	}
	Kafka struct {
		Brokers []string
		Topic   string
		GroupID string
	}
	API struct {
		Port     string
		BasePath string
	}
	Logging struct {
		Dir    string
		Level  string
		Format string
	}
	Notification struct {
		QueueSize           int
		MaxWorkers          int
		InitialFailureDelay time.Duration
		RepeatFailureDelay  time.Duration
		IgnoreUnknown       bool
		AckDuration         time.Duration
		Queues              map[models.Medium]string
	}
	Gateway struct {
		Media       []models.Medium
		WaitTimeout time.Duration
	}
	SMS struct {
		Provider string // messagenet or twilio
	}
	Messagenet struct {
		Username string
		Password string
		BaseURL  string
		TimeZone string
	}
	Twilio struct {
		AccountSID string
		AuthToken  string
		FromNumber string
	}
	Email struct {
		SMTPServer  string
		SMTPPort    int
		Username    string
		Password    string
		FromName    string
		FromAddress string
	}
	Telegram struct {
		BotToken  string
		RateLimit int
		ServerURL string
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("MIGRATIONS_PATH", "migrations")
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("KAFKA_TOPIC", "check-events")
	v.SetDefault("KAFKA_GROUP_ID", "alert-router")
	v.SetDefault("API_PORT", ":8080")
	v.SetDefault("API_BASE_PATH", "/api/v0")
	v.SetDefault("LOG_DIR", "logs")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("QUEUE_SIZE", 500)
	v.SetDefault("MAX_WORKERS", 10)
	v.SetDefault("INITIAL_FAILURE_DELAY", "30s")
	v.SetDefault("REPEAT_FAILURE_DELAY", "60s")
	v.SetDefault("IGNORE_UNKNOWN", false)
	v.SetDefault("ACK_DURATION", "4h")
	v.SetDefault("GATEWAY_MEDIA", "sms,email,telegram,web")
	v.SetDefault("GATEWAY_WAIT_TIMEOUT", "5s")
	v.SetDefault("SMS_PROVIDER", "messagenet")
	v.SetDefault("MESSAGENET_BASE_URL", "https://www.messagenet.com.au")
	v.SetDefault("EMAIL_SMTP_PORT", 587)
	v.SetDefault("TELEGRAM_RATE_LIMIT", 25)
}

// Load reads .env if present, then the environment, applies defaults and
// returns a Config.
func Load() (Config, error) {
	return LoadFile(".env")
}

// LoadFile is Load with an explicit .env path.
func LoadFile(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	var cfg Config

	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	cfg.DB.DSN = v.GetString("DB_DSN")
	cfg.DB.MigrationsPath = v.GetString("MIGRATIONS_PATH")
	cfg.DB.ConnectRetries = v.GetInt("DB_CONNECT_RETRIES")

	cfg.Kafka.Brokers = splitList(v.GetString("KAFKA_BROKERS"))
	cfg.Kafka.Topic = v.GetString("KAFKA_TOPIC")
	cfg.Kafka.GroupID = v.GetString("KAFKA_GROUP_ID")

	cfg.API.Port = v.GetString("API_PORT")
	cfg.API.BasePath = v.GetString("API_BASE_PATH")

	cfg.Logging.Dir = v.GetString("LOG_DIR")
	cfg.Logging.Level = v.GetString("LOG_LEVEL")
	cfg.Logging.Format = v.GetString("LOG_FORMAT")

	cfg.Notification.QueueSize = v.GetInt("QUEUE_SIZE")
	cfg.Notification.MaxWorkers = v.GetInt("MAX_WORKERS")
	cfg.Notification.InitialFailureDelay = v.GetDuration("INITIAL_FAILURE_DELAY")
	cfg.Notification.RepeatFailureDelay = v.GetDuration("REPEAT_FAILURE_DELAY")
	cfg.Notification.IgnoreUnknown = v.GetBool("IGNORE_UNKNOWN")
	cfg.Notification.AckDuration = v.GetDuration("ACK_DURATION")
	cfg.Notification.Queues = make(map[models.Medium]string, len(models.Media))
	for _, medium := range models.Media {
		key := "QUEUE_" + strings.ToUpper(string(medium))
		name := v.GetString(key)
		if name == "" {
			name = string(medium) + "_notifications"
		}
		cfg.Notification.Queues[medium] = name
	}

	for _, m := range splitList(v.GetString("GATEWAY_MEDIA")) {
		cfg.Gateway.Media = append(cfg.Gateway.Media, models.Medium(m))
	}
	cfg.Gateway.WaitTimeout = v.GetDuration("GATEWAY_WAIT_TIMEOUT")

	cfg.SMS.Provider = v.GetString("SMS_PROVIDER")

	cfg.Messagenet.Username = v.GetString("MESSAGENET_USERNAME")
	cfg.Messagenet.Password = v.GetString("MESSAGENET_PASSWORD")
	cfg.Messagenet.BaseURL = v.GetString("MESSAGENET_BASE_URL")
	cfg.Messagenet.TimeZone = v.GetString("MESSAGENET_TIMEZONE")

	cfg.Twilio.AccountSID = v.GetString("TWILIO_ACCOUNT_SID")
	cfg.Twilio.AuthToken = v.GetString("TWILIO_AUTH_TOKEN")
	cfg.Twilio.FromNumber = v.GetString("TWILIO_FROM_NUMBER")

	cfg.Email.SMTPServer = v.GetString("EMAIL_SMTP_SERVER")
	cfg.Email.SMTPPort = v.GetInt("EMAIL_SMTP_PORT")
	cfg.Email.Username = v.GetString("EMAIL_USERNAME")
	cfg.Email.Password = v.GetString("EMAIL_PASSWORD")
	cfg.Email.FromName = v.GetString("EMAIL_FROM_NAME")
	cfg.Email.FromAddress = v.GetString("EMAIL_FROM_ADDRESS")

	cfg.Telegram.BotToken = v.GetString("TELEGRAM_BOT_TOKEN")
	cfg.Telegram.RateLimit = v.GetInt("TELEGRAM_RATE_LIMIT")
	cfg.Telegram.ServerURL = v.GetString("TELEGRAM_SERVER_URL")

	// Validate required settings
	if missing := cfg.Missing("REDIS_ADDR"); len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configurations: %v", missing)
	}
	if cfg.SMS.Provider != "messagenet" && cfg.SMS.Provider != "twilio" {
		return Config{}, fmt.Errorf("invalid SMS_PROVIDER %q", cfg.SMS.Provider)
	}
	for _, m := range cfg.Gateway.Media {
		if _, ok := cfg.Notification.Queues[m]; !ok {
			return Config{}, fmt.Errorf("invalid GATEWAY_MEDIA entry %q", m)
		}
	}

	return cfg, nil
}

// Missing returns the subset of keys that are required but empty.
func (c Config) Missing(keys ...string) []string {
	values := map[string]string{
		"REDIS_ADDR":    c.Redis.Addr,
		"DB_DSN":        c.DB.DSN,
		"KAFKA_BROKERS": strings.Join(c.Kafka.Brokers, ","),
		"KAFKA_TOPIC":   c.Kafka.Topic,
	}
	var missing []string
	for _, k := range keys {
		if values[k] == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// QueueFor returns the queue that carries messages for medium.
func (c Config) QueueFor(medium models.Medium) string {
	if name, ok := c.Notification.Queues[medium]; ok {
		return name
	}
	return string(medium) + "_notifications"
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
