package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	Port        string
	Env         string

	// Auth
	JWTSecret        string
	DownloadTokenTTL time.Duration

	// Credits
	FreeCredits int

	// Uploads
	UploadProvider string // local, s3
	UploadDir      string
	MaxUploadSize  int64

	// S3 (when UPLOAD_PROVIDER=s3)
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSRegion          string
	S3Bucket           string

	// Fitting provider
	FittingProvider   string
	FashnAPIKey       string
	FashnAPIURL       string
	FittingTimeout    time.Duration
	FittingMaxRetries int

	// Catalog categories eligible for try-on; empty means every product
	FittingCategories []string

	// OpenAI photo screening (disabled when key is empty)
	OpenAIKey string

	// Product catalog
	CatalogBaseURL string
	CatalogAPIKey  string

	// Payment
	PaymentMode      string // manual, stripe
	StripeSecretKey  string
	PaymentReturnURL string
	CheckoutCurrency string

	// Retention
	ResultRetentionHours  int
	ActivityRetentionDays int
}

func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ .env file not found, using system environment variables")
	}

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		DownloadTokenTTL: getEnvDuration("DOWNLOAD_TOKEN_TTL", 15*time.Minute),

		FreeCredits: getEnvInt("FREE_CREDITS", 3),

		UploadProvider: getEnv("UPLOAD_PROVIDER", "local"),
		UploadDir:      getEnv("UPLOAD_DIR", "./uploads"),
		MaxUploadSize:  int64(getEnvInt("MAX_UPLOAD_SIZE", 10*1024*1024)),

		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSRegion:          getEnv("AWS_REGION", "ap-southeast-1"),
		S3Bucket:           os.Getenv("S3_BUCKET"),

		FittingProvider:   getEnv("FITTING_PROVIDER", "fashn"),
		FashnAPIKey:       os.Getenv("FASHN_API_KEY"),
		FashnAPIURL:       getEnv("FASHN_API_URL", "https://api.fashn.ai"),
		FittingTimeout:    getEnvDuration("FITTING_TIMEOUT", 60*time.Second),
		FittingMaxRetries: getEnvInt("FITTING_MAX_RETRIES", 2),
		FittingCategories: getEnvList("FITTING_CATEGORIES"),

		OpenAIKey: os.Getenv("OPENAI_API_KEY"),

		CatalogBaseURL: os.Getenv("CATALOG_BASE_URL"),
		CatalogAPIKey:  os.Getenv("CATALOG_API_KEY"),

		PaymentMode:      getEnv("PAYMENT_MODE", "manual"),
		StripeSecretKey:  os.Getenv("STRIPE_SECRET_KEY"),
		PaymentReturnURL: getEnv("PAYMENT_RETURN_URL", "http://localhost:8080/checkout/return"),
		CheckoutCurrency: getEnv("CHECKOUT_CURRENCY", "usd"),

		ResultRetentionHours:  getEnvInt("RESULT_RETENTION_HOURS", 24),
		ActivityRetentionDays: getEnvInt("ACTIVITY_RETENTION_DAYS", 30),
	}

	if cfg.JWTSecret == "" {
		if cfg.Env != "development" {
			log.Fatal("❌ JWT_SECRET is required outside development")
		}
		cfg.JWTSecret = "dev-secret-change-me"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("⚠️ Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
