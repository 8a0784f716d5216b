package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	MongoURI string
	DBName   string

	JWTSecret string
	JWTExpiry time.Duration

	CORSOrigins []string

	SessionCookieName string
	SessionTTL        time.Duration
	CookieSecure      bool

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	PaymentKeyID         string
	PaymentKeySecret     string
	PaymentWebhookSecret string
	Currency             string

	LowStockThreshold     int
	FreeShippingThreshold float64
	ShippingFee           float64
	TaxRate               float64
}

// LoadEnv reads a .env file when present. Variables already set in the
// process environment are left untouched.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("[config] could not read .env: %v", err)
	}
}

func GetEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	n, err := strconv.Atoi(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getFloat(key string, fallback float64) float64 {
	f, err := strconv.ParseFloat(GetEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(GetEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Load builds the runtime configuration from the environment.
func Load() (Config, error) {
	cfg := Config{
		Port:                  GetEnv("PORT", "8080"),
		Env:                   GetEnv("APP_ENV", "development"),
		MongoURI:              GetEnv("MONGO_URI", ""),
		DBName:                GetEnv("DB_NAME", ""),
		JWTSecret:             GetEnv("JWT_SECRET", ""),
		JWTExpiry:             getDuration("JWT_EXPIRY", 7*24*time.Hour),
		CORSOrigins:           splitList(GetEnv("CORS_ORIGINS", "http://localhost:3000")),
		SessionCookieName:     GetEnv("SESSION_COOKIE", "vcx_sid"),
		SessionTTL:            getDuration("SESSION_TTL", 7*24*time.Hour),
		CookieSecure:          getBool("COOKIE_SECURE", false),
		SMTPHost:              GetEnv("SMTP_HOST", ""),
		SMTPPort:              GetEnv("SMTP_PORT", "587"),
		SMTPUser:              GetEnv("SMTP_USER", ""),
		SMTPPass:              GetEnv("SMTP_PASS", ""),
		SMTPFrom:              GetEnv("SMTP_FROM", "no-reply@vcxmart.local"),
		PaymentKeyID:          GetEnv("PAYMENT_KEY_ID", ""),
		PaymentKeySecret:      GetEnv("PAYMENT_KEY_SECRET", ""),
		PaymentWebhookSecret:  GetEnv("PAYMENT_WEBHOOK_SECRET", ""),
		Currency:              GetEnv("CURRENCY", "INR"),
		LowStockThreshold:     getInt("LOW_STOCK_THRESHOLD", 5),
		FreeShippingThreshold: getFloat("FREE_SHIPPING_THRESHOLD", 500),
		ShippingFee:           getFloat("SHIPPING_FEE", 50),
		TaxRate:               getFloat("TAX_RATE", 0.18),
	}

	if cfg.Env != "test" {
		var missing []string
		if cfg.MongoURI == "" {
			missing = append(missing, "MONGO_URI")
		}
		if cfg.DBName == "" {
			missing = append(missing, "DB_NAME")
		}
		if cfg.JWTSecret == "" {
			missing = append(missing, "JWT_SECRET")
		}
		if len(missing) > 0 {
			return cfg, errors.New("missing required environment variables: " + strings.Join(missing, ", "))
		}
	}

	log.Printf("[config] PORT=%s APP_ENV=%s DB_NAME=%s CORS_ORIGINS=%v", cfg.Port, cfg.Env, cfg.DBName, cfg.CORSOrigins)
	return cfg, nil
}

func (c Config) IsProduction() bool { return c.Env == "production" }
