package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	PublicBaseURL string

	// Checkout pricing. One fixed price for every render.
	RenderPriceCents int64
	RenderCurrency   string

	StripeSecretKey     string
	StripeWebhookSecret string

	S3Bucket          string
	S3Region          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
	UploadURLTTL      time.Duration
	DownloadURLTTL    time.Duration

	RenderPodURL    string
	RenderPodAPIKey string
	RenderTimeout   time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	SweepBatchSize    int
	ReapBatchSize     int
	SweepInterval     time.Duration
	RetentionHours    int
	StuckAfter        time.Duration
	LockName          string
	DailyTaskHour     int
	DailyTaskTimezone string

	GeoIPDBPath string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),

		RenderPriceCents: int64(getEnvInt("RENDER_PRICE_CENTS", 500)),
		RenderCurrency:   getEnv("RENDER_CURRENCY", "usd"),

		StripeSecretKey:     os.Getenv("STRIPE_SECRET_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),

		S3Bucket:          os.Getenv("S3_BUCKET"),
		S3Region:          getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:        os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:     os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey: os.Getenv("S3_SECRET_ACCESS_KEY"),
		UploadURLTTL:      time.Minute * time.Duration(getEnvInt("UPLOAD_URL_TTL_MINUTES", 10)),
		DownloadURLTTL:    time.Minute * time.Duration(getEnvInt("DOWNLOAD_URL_TTL_MINUTES", 60)),

		RenderPodURL:    os.Getenv("RENDER_POD_URL"),
		RenderPodAPIKey: os.Getenv("RENDER_POD_API_KEY"),
		RenderTimeout:   time.Minute * time.Duration(getEnvInt("RENDER_TIMEOUT_MINUTES", 10)),

		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		MailFrom:     getEnv("MAIL_FROM", "no-reply@localhost"),

		SweepBatchSize:    getEnvInt("SWEEP_BATCH_SIZE", 5),
		ReapBatchSize:     getEnvInt("REAP_BATCH_SIZE", 20),
		SweepInterval:     time.Second * time.Duration(getEnvInt("SWEEP_INTERVAL_SECONDS", 60)),
		RetentionHours:    getEnvInt("RETENTION_HOURS", 24),
		StuckAfter:        time.Hour * time.Duration(getEnvInt("STUCK_AFTER_HOURS", 2)),
		LockName:          getEnv("MAINTENANCE_LOCK_NAME", "render-maintenance"),
		DailyTaskHour:     getEnvInt("DAILY_TASK_HOUR", 3),
		DailyTaskTimezone: getEnv("DAILY_TASK_TIMEZONE", "Asia/Jakarta"),

		GeoIPDBPath: os.Getenv("GEOIP_DB_PATH"),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RenderPriceCents <= 0 {
		return nil, fmt.Errorf("RENDER_PRICE_CENTS must be positive")
	}

	if cfg.SweepBatchSize <= 0 {
		return nil, fmt.Errorf("SWEEP_BATCH_SIZE must be positive")
	}

	if _, err := time.LoadLocation(cfg.DailyTaskTimezone); err != nil {
		return nil, fmt.Errorf("DAILY_TASK_TIMEZONE is invalid: %w", err)
	}

	return cfg, nil
}

// RetentionWindow returns the configured result retention as a duration.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
