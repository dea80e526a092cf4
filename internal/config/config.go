package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"posgo/backend/internal/media"
)

type Config struct {
	AppEnv                string
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	DemoSnapshotPath      string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	DefaultStoreID        string
	TenantCacheTTLSeconds int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ReceiptWebhookURL     string
	ReceiptWebhookTimeout int
	PublicBaseURL         string
	S3                    media.S3Config
	MetricsEnabled        bool
}

// Load reads the process environment, after merging a .env file when one exists.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		DemoSnapshotPath:      strings.TrimSpace(os.Getenv("DEMO_SNAPSHOT_PATH")),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               getInt("REDIS_DB", 0, 0),
		DefaultStoreID:        strings.TrimSpace(os.Getenv("DEFAULT_STORE_ID")),
		TenantCacheTTLSeconds: getInt("TENANT_CACHE_TTL_SECONDS", 3600, 1),
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: getInt("ACCESS_TOKEN_TTL_MINUTES", 480, 1),
		ReceiptWebhookURL:     strings.TrimSpace(os.Getenv("RECEIPT_WEBHOOK_URL")),
		ReceiptWebhookTimeout: getInt("RECEIPT_WEBHOOK_TIMEOUT_SECONDS", 10, 1),
		PublicBaseURL:         getEnv("PUBLIC_BASE_URL", "http://127.0.0.1:8080"),
		S3: media.S3Config{
			Bucket:    os.Getenv("S3_BUCKET"),
			Region:    getEnv("S3_REGION", "us-east-1"),
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			PublicURL: os.Getenv("S3_PUBLIC_URL"),
		},
		MetricsEnabled: getBool("METRICS_ENABLED", true),
	}
	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// DemoMode reports whether the in-process demo store is selected.
func (c Config) DemoMode() bool {
	return c.DatabaseURL == ""
}

func (c Config) TenantCacheTTL() time.Duration {
	return time.Duration(c.TenantCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) WebhookTimeout() time.Duration {
	return time.Duration(c.ReceiptWebhookTimeout) * time.Second
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int, minimum int) int {
	n, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil || n < minimum {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(fallback)))
	if err != nil {
		return fallback
	}
	return b
}
