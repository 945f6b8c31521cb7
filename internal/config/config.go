package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// WebhookPath is where the payment gateway delivers invoice callbacks.
const WebhookPath = "/api/v1/payments/monobank/webhook"

// Config holds everything the process reads from its environment.
type Config struct {
	AppPort string

	DatabaseDriver string // postgres, sqlite or memory
	DatabaseDSN    string
	CheckProducts  bool

	MonobankToken      string
	MonobankBaseURL    string
	MonobankWebhookURL string
	Currency           string
	PaymentRedirectURL string
	PaymentDestination string
	PublicBaseURL      string

	TelegramBotToken string
	TelegramChatID   string
	TelegramBaseURL  string

	RabbitMQURL         string
	CallbackMaxAttempts int
	CallbackRetryDelay  time.Duration

	JWTSecret     string
	AdminUsername string
	AdminPassword string

	HTTPClientTimeout time.Duration
	NotifyTimeout     time.Duration
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("DATABASE_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "toko-pay.db")
	v.SetDefault("CHECK_PRODUCTS", false)
	v.SetDefault("MONOBANK_API_TOKEN", "")
	v.SetDefault("MONOBANK_BASE_URL", "https://api.monobank.ua")
	v.SetDefault("MONOBANK_WEBHOOK_URL", "")
	v.SetDefault("CURRENCY", "UAH")
	v.SetDefault("PAYMENT_REDIRECT_URL", "")
	v.SetDefault("PAYMENT_DESTINATION", "Order")
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_CHAT_ID", "")
	v.SetDefault("TELEGRAM_BASE_URL", "https://api.telegram.org")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("CALLBACK_MAX_ATTEMPTS", 5)
	v.SetDefault("CALLBACK_RETRY_DELAY", "5s")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("ADMIN_USERNAME", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("HTTP_CLIENT_TIMEOUT", "10s")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
}

// Load reads the configuration from v. Defaults are applied, then an optional .env file
// (CONFIG_FILE overrides its location), then the process environment.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)
	v.AutomaticEnv()

	file := v.GetString("CONFIG_FILE")
	if file == "" {
		file = ".env"
	}
	if _, err := os.Stat(file); err == nil {
		v.SetConfigFile(file)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
		log.Printf("Loaded configuration from %s", file)
	}

	cfg := Config{
		AppPort:             v.GetString("APP_PORT"),
		DatabaseDriver:      strings.ToLower(v.GetString("DATABASE_DRIVER")),
		DatabaseDSN:         v.GetString("DATABASE_DSN"),
		CheckProducts:       v.GetBool("CHECK_PRODUCTS"),
		MonobankToken:       v.GetString("MONOBANK_API_TOKEN"),
		MonobankBaseURL:     v.GetString("MONOBANK_BASE_URL"),
		MonobankWebhookURL:  v.GetString("MONOBANK_WEBHOOK_URL"),
		Currency:            strings.ToUpper(v.GetString("CURRENCY")),
		PaymentRedirectURL:  v.GetString("PAYMENT_REDIRECT_URL"),
		PaymentDestination:  v.GetString("PAYMENT_DESTINATION"),
		PublicBaseURL:       strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		TelegramBotToken:    v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:      v.GetString("TELEGRAM_CHAT_ID"),
		TelegramBaseURL:     v.GetString("TELEGRAM_BASE_URL"),
		RabbitMQURL:         v.GetString("RABBITMQ_URL"),
		CallbackMaxAttempts: v.GetInt("CALLBACK_MAX_ATTEMPTS"),
		CallbackRetryDelay:  v.GetDuration("CALLBACK_RETRY_DELAY"),
		JWTSecret:           v.GetString("JWT_SECRET"),
		AdminUsername:       v.GetString("ADMIN_USERNAME"),
		AdminPassword:       v.GetString("ADMIN_PASSWORD"),
		HTTPClientTimeout:   v.GetDuration("HTTP_CLIENT_TIMEOUT"),
		NotifyTimeout:       v.GetDuration("NOTIFY_TIMEOUT"),
	}
	return cfg, cfg.Validate()
}

// Validate reports settings that cannot work together.
func (c Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case "postgres", "sqlite", "memory":
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER %q is not one of postgres, sqlite, memory", c.DatabaseDriver))
	}
	if c.DatabaseDriver != "memory" && c.DatabaseDSN == "" {
		errs = append(errs, errors.New("DATABASE_DSN is required"))
	}
	if c.CallbackMaxAttempts < 1 {
		errs = append(errs, errors.New("CALLBACK_MAX_ATTEMPTS must be at least 1"))
	}
	if c.HTTPClientTimeout <= 0 {
		errs = append(errs, errors.New("HTTP_CLIENT_TIMEOUT must be positive"))
	}
	if c.AdminUsername != "" && c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required when ADMIN_USERNAME is set"))
	}
	return errors.Join(errs...)
}

// WebhookURL is the callback address handed to the payment gateway. An explicit
// MONOBANK_WEBHOOK_URL wins over PUBLIC_BASE_URL. Empty means no callback is requested.
func (c Config) WebhookURL() string {
	if c.MonobankWebhookURL != "" {
		return c.MonobankWebhookURL
	}
	if c.PublicBaseURL == "" {
		return ""
	}
	return c.PublicBaseURL + WebhookPath
}
