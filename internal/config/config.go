package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MemoryDatabase selects the in-process store instead of Postgres.
const MemoryDatabase = "memory"

// Config holds runtime configuration sourced from env vars.
type Config struct {
	Port        string
	AppBaseURL  string
	DatabaseURL string
	JWTSecret   string
	JWTIssuer   string
	JWTTTL      time.Duration
	CORSOrigins []string
	LogLevel    string

	RedisURL string
	CacheTTL time.Duration

	RateLimitRPS   int
	RateLimitBurst int

	Stripe  StripeConfig
	Push    PushConfig
	Email   EmailConfig
	Storage StorageConfig

	CronSecret     string
	DigestSchedule string
}

// StripeConfig configures escrow payments.
type StripeConfig struct {
	SecretKey      string
	WebhookSecret  string
	Currency       string
	PlatformFeeBPS int64
}

// Enabled reports whether payment calls can be made.
func (s StripeConfig) Enabled() bool { return s.SecretKey != "" }

// PushConfig holds the VAPID key pair used to sign Web Push requests.
type PushConfig struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	Subject         string
}

// Enabled reports whether push delivery is possible.
func (p PushConfig) Enabled() bool { return p.VAPIDPublicKey != "" && p.VAPIDPrivateKey != "" }

// EmailConfig configures transactional email.
type EmailConfig struct {
	APIKey string
	From   string
}

// Enabled reports whether email delivery is possible.
func (e EmailConfig) Enabled() bool { return e.APIKey != "" }

// StorageConfig points at an S3-compatible bucket for uploads.
type StorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Enabled reports whether uploads can be stored.
func (s StorageConfig) Enabled() bool { return s.Endpoint != "" && s.Bucket != "" }

// Load reads configuration from the environment and performs minimal validation.
func Load() (Config, error) {
	cfg := Config{
		Port:           fallback(os.Getenv("PORT"), "8080"),
		AppBaseURL:     strings.TrimRight(fallback(os.Getenv("APP_BASE_URL"), "http://localhost:3000"), "/"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:      strings.TrimSpace(os.Getenv("JWT_SECRET")),
		JWTIssuer:      fallback(os.Getenv("JWT_ISSUER"), "bountyboard"),
		CORSOrigins:    parseCSV(fallback(os.Getenv("CORS_ALLOWED_ORIGINS"), "*")),
		LogLevel:       fallback(os.Getenv("LOG_LEVEL"), "info"),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		CacheTTL:       time.Duration(positiveInt(os.Getenv("CACHE_TTL_SECONDS"), 60)) * time.Second,
		RateLimitRPS:   positiveInt(os.Getenv("RATE_LIMIT_RPS"), 10),
		RateLimitBurst: positiveInt(os.Getenv("RATE_LIMIT_BURST"), 20),
		Stripe: StripeConfig{
			SecretKey:      strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
			WebhookSecret:  strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
			Currency:       strings.ToLower(fallback(os.Getenv("CURRENCY"), "usd")),
			PlatformFeeBPS: int64(positiveInt(os.Getenv("PLATFORM_FEE_BPS"), 1000)),
		},
		Push: PushConfig{
			VAPIDPublicKey:  strings.TrimSpace(os.Getenv("VAPID_PUBLIC_KEY")),
			VAPIDPrivateKey: strings.TrimSpace(os.Getenv("VAPID_PRIVATE_KEY")),
			Subject:         fallback(os.Getenv("VAPID_SUBJECT"), "mailto:support@bountyboard.dev"),
		},
		Email: EmailConfig{
			APIKey: strings.TrimSpace(os.Getenv("RESEND_API_KEY")),
			From:   fallback(os.Getenv("EMAIL_FROM"), "Bountyboard <noreply@bountyboard.dev>"),
		},
		Storage: StorageConfig{
			Endpoint:  strings.TrimSpace(os.Getenv("STORAGE_ENDPOINT")),
			AccessKey: strings.TrimSpace(os.Getenv("STORAGE_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("STORAGE_SECRET_KEY")),
			Bucket:    strings.TrimSpace(os.Getenv("STORAGE_BUCKET")),
			UseSSL:    fallback(os.Getenv("STORAGE_USE_SSL"), "true") == "true",
		},
		CronSecret:     strings.TrimSpace(os.Getenv("CRON_SECRET")),
		DigestSchedule: strings.TrimSpace(os.Getenv("DIGEST_SCHEDULE")),
	}

	cfg.JWTTTL = time.Duration(positiveInt(os.Getenv("JWT_TTL_MINUTES"), 60)) * time.Minute

	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET is required")
	}
	if cfg.Stripe.PlatformFeeBPS >= 10000 {
		return Config{}, errors.New("PLATFORM_FEE_BPS must be below 10000")
	}

	return cfg, nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

// UsesMemoryStore reports whether DATABASE_URL selects the in-process store.
func (c Config) UsesMemoryStore() bool {
	return c.DatabaseURL == MemoryDatabase
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func positiveInt(value string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
