package config

import (
	"log"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var loadOnce sync.Once

func loadEnv() {
	loadOnce.Do(func() {
		if err := godotenv.Load(".env"); err != nil {
			log.Println("Warning: .env file not found, reading from system environment variables")
		}
	})
}

// Config returns the raw value of an environment key after the .env file has been loaded.
func Config(key string) string {
	loadEnv()
	return os.Getenv(key)
}

// Settings is the typed view of the environment used to wire the API.
type Settings struct {
	DatabaseURL string
	Port        string
	JWTSecret   string
	Timezone    *time.Location

	GatewayServerKey string
	GatewaySnapURL   string
	GatewayAPIURL    string
	GatewayTimeout   time.Duration

	DepositPercentage decimal.Decimal
	PaymentWindow     time.Duration
	CompletionGrace   time.Duration

	RabbitURL     string
	CloudinaryURL string

	BrevoAPIKey     string
	EmailSender     string
	EmailSenderName string
}

func Load() *Settings {
	loc, err := time.LoadLocation(getOr("APP_TIMEZONE", "Asia/Jakarta"))
	if err != nil {
		log.Printf("Warning: invalid APP_TIMEZONE, falling back to UTC: %v", err)
		loc = time.UTC
	}

	return &Settings{
		DatabaseURL: Config("DATABASE_URL"),
		Port:        getOr("PORT", "8080"),
		JWTSecret:   Config("JWT_SECRET"),
		Timezone:    loc,

		GatewayServerKey: Config("MIDTRANS_SERVER_KEY"),
		GatewaySnapURL:   getOr("MIDTRANS_SNAP_URL", "https://app.sandbox.midtrans.com"),
		GatewayAPIURL:    getOr("MIDTRANS_API_URL", "https://api.sandbox.midtrans.com"),
		GatewayTimeout:   durationOr("MIDTRANS_TIMEOUT", 15*time.Second),

		DepositPercentage: decimalOr("DEPOSIT_PERCENTAGE", decimal.NewFromFloat(0.30)),
		PaymentWindow:     durationOr("PAYMENT_WINDOW", 24*time.Hour),
		CompletionGrace:   durationOr("COMPLETION_GRACE", 24*time.Hour),

		RabbitURL:     Config("RABBITMQ_URL"),
		CloudinaryURL: Config("CLOUDINARY_URL"),

		BrevoAPIKey:     Config("BREVO_API_KEY"),
		EmailSender:     Config("EMAIL_SENDER"),
		EmailSenderName: Config("EMAIL_SENDER_NAME"),
	}
}

func getOr(key, fallback string) string {
	if v := Config(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
	v := Config(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("Warning: invalid duration for %s (%q), using %s", key, v, fallback)
		return fallback
	}
	return d
}

func decimalOr(key string, fallback decimal.Decimal) decimal.Decimal {
	v := Config(key)
	if v == "" {
		return fallback
	}
	if _, err := strconv.ParseFloat(v, 64); err != nil {
		log.Printf("Warning: invalid number for %s (%q), using %s", key, v, fallback)
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return fallback
	}
	return d
}
