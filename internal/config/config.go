// Package config holds tunables and loads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config is the runtime configuration of the server and the admin CLI.
type Config struct {
	HTTPAddr string

	DBHost     string
	DBUser     string
	DBPassword string
	DBName     string
	DBPort     string
	DBSSLMode  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	JWTSecret string
	JWTIssuer string

	// Mail delivery through the Resend API. Empty key disables it.
	ResendAPIKey string
	MailFrom     string
	AdminEmails  []string

	// NotifyWebhookURL receives the raw notification payload. Empty disables it.
	NotifyWebhookURL   string
	NotifyWebhookToken string

	TelegramBotToken    string
	TelegramAdminChatID int64

	// AttachmentBucket is the Cloud Storage bucket for uploads. Empty disables uploads.
	AttachmentBucket   string
	// GCSCredentialsFile is a service account key. Empty uses application default credentials.
	GCSCredentialsFile string
}

// Load reads the configuration from environment variables.
// Call godotenv.Load beforehand to pick up a local .env file.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:           getenv("HTTP_ADDR", ":8080"),
		DBHost:             getenv("DB_HOST", "localhost"),
		DBUser:             getenv("DB_USER", "user"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBName:             getenv("DB_NAME", "complaintdesk"),
		DBPort:             getenv("DB_PORT", "5432"),
		DBSSLMode:          getenv("DB_SSLMODE", "disable"),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		JWTIssuer:          getenv("JWT_ISSUER", DefaultTokenIssuer),
		ResendAPIKey:       os.Getenv("RESEND_API_KEY"),
		MailFrom:           getenv("MAIL_FROM", "Brototype <onboarding@resend.dev>"),
		AdminEmails:        splitList(os.Getenv("ADMIN_EMAILS")),
		NotifyWebhookURL:   os.Getenv("NOTIFY_WEBHOOK_URL"),
		NotifyWebhookToken: os.Getenv("NOTIFY_WEBHOOK_TOKEN"),
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		AttachmentBucket:   os.Getenv("ATTACHMENT_BUCKET"),
		GCSCredentialsFile: os.Getenv("GCS_CREDENTIALS_FILE"),
	}

	if len(cfg.AdminEmails) == 0 {
		cfg.AdminEmails = append([]string(nil), DefaultAdminEmails...)
	}

	if raw := os.Getenv("REDIS_DB"); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB %q: %w", raw, err)
		}
		cfg.RedisDB = db
	}

	if raw := os.Getenv("TELEGRAM_ADMIN_CHAT_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_ADMIN_CHAT_ID %q: %w", raw, err)
		}
		cfg.TelegramAdminChatID = id
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}

	return cfg, nil
}

// DSN builds the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort, c.DBSSLMode)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
