package utils

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Storage  StorageConfig
	JWT      JWTConfig
	Payment  PaymentConfig
	Booking  BookingConfig
	Events   EventsConfig
	Redis    RedisConfig
}

type AppConfig struct {
	Name    string
	Port    string
	Debug   bool
	LogPath string
}

type DatabaseConfig struct {
	Host        string
	Port        string
	Name        string
	User        string
	Password    string
	MaxConns    int32
	AutoMigrate bool
}

// StorageConfig selects the repository backend: "postgres" or "memory".
type StorageConfig struct {
	Driver string
}

type JWTConfig struct {
	Secret string
}

type PaymentConfig struct {
	Provider        string // simulated | stripe
	Currency        string
	StripeSecretKey string
	WebhookSecret   string
	RefreshURL      string
	ReturnURL       string
	MaxRetries      int
	RetryBaseDelay  time.Duration
}

type BookingConfig struct {
	ExpiryDays    int
	SweepInterval time.Duration
}

type EventsConfig struct {
	Publisher     string // log | kafka
	KafkaBrokers  []string
	KafkaTopic    string
	RelayInterval time.Duration
	BatchSize     int
	// MaxAttempts is how often an event may fail to publish before it is
	// dead-lettered.
	MaxAttempts int
}

type RedisConfig struct {
	URL             string
	WebhookDedupTTL time.Duration
}

func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")

	// Set defaults
	viper.SetDefault("APP_NAME", "courier-booking")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DEBUG", false)
	viper.SetDefault("LOG_PATH", "logs/")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_MAX_CONNS", 10)
	viper.SetDefault("DB_AUTO_MIGRATE", false)
	viper.SetDefault("STORAGE_DRIVER", "postgres")
	viper.SetDefault("PAYMENT_PROVIDER", "simulated")
	viper.SetDefault("PAYMENT_CURRENCY", "usd")
	viper.SetDefault("PAYMENT_MAX_RETRIES", 3)
	viper.SetDefault("PAYMENT_RETRY_BASE_DELAY", "200ms")
	viper.SetDefault("BOOKING_EXPIRY_DAYS", 7)
	viper.SetDefault("BOOKING_SWEEP_INTERVAL", "1m")
	viper.SetDefault("EVENT_PUBLISHER", "log")
	viper.SetDefault("EVENT_KAFKA_TOPIC", "settlement-events")
	viper.SetDefault("EVENT_RELAY_INTERVAL", "2s")
	viper.SetDefault("EVENT_BATCH_SIZE", 100)
	viper.SetDefault("EVENT_MAX_ATTEMPTS", 10)
	viper.SetDefault("WEBHOOK_DEDUP_TTL", "72h")

	// .env is optional, the environment always wins
	if err := viper.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	viper.AutomaticEnv()

	config := &Config{
		App: AppConfig{
			Name:    viper.GetString("APP_NAME"),
			Port:    viper.GetString("PORT"),
			Debug:   viper.GetBool("DEBUG"),
			LogPath: viper.GetString("LOG_PATH"),
		},
		Database: DatabaseConfig{
			Host:        viper.GetString("DB_HOST"),
			Port:        viper.GetString("DB_PORT"),
			Name:        viper.GetString("DB_NAME"),
			User:        viper.GetString("DB_USER"),
			Password:    viper.GetString("DB_PASS"),
			MaxConns:    viper.GetInt32("DB_MAX_CONNS"),
			AutoMigrate: viper.GetBool("DB_AUTO_MIGRATE"),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(viper.GetString("STORAGE_DRIVER")),
		},
		JWT: JWTConfig{
			Secret: viper.GetString("JWT_SECRET"),
		},
		Payment: PaymentConfig{
			Provider:        strings.ToLower(viper.GetString("PAYMENT_PROVIDER")),
			Currency:        strings.ToLower(viper.GetString("PAYMENT_CURRENCY")),
			StripeSecretKey: viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret:   viper.GetString("PAYMENT_WEBHOOK_SECRET"),
			RefreshURL:      viper.GetString("PAYOUT_ONBOARDING_REFRESH_URL"),
			ReturnURL:       viper.GetString("PAYOUT_ONBOARDING_RETURN_URL"),
			MaxRetries:      viper.GetInt("PAYMENT_MAX_RETRIES"),
			RetryBaseDelay:  viper.GetDuration("PAYMENT_RETRY_BASE_DELAY"),
		},
		Booking: BookingConfig{
			ExpiryDays:    viper.GetInt("BOOKING_EXPIRY_DAYS"),
			SweepInterval: viper.GetDuration("BOOKING_SWEEP_INTERVAL"),
		},
		Events: EventsConfig{
			Publisher:     strings.ToLower(viper.GetString("EVENT_PUBLISHER")),
			KafkaBrokers:  splitList(viper.GetString("EVENT_KAFKA_BROKERS")),
			KafkaTopic:    viper.GetString("EVENT_KAFKA_TOPIC"),
			RelayInterval: viper.GetDuration("EVENT_RELAY_INTERVAL"),
			BatchSize:     viper.GetInt("EVENT_BATCH_SIZE"),
			MaxAttempts:   viper.GetInt("EVENT_MAX_ATTEMPTS"),
		},
		Redis: RedisConfig{
			URL:             viper.GetString("REDIS_URL"),
			WebhookDedupTTL: viper.GetDuration("WEBHOOK_DEDUP_TTL"),
		},
	}

	return config, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
